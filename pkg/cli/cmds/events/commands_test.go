package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValues(t *testing.T) {
	values, err := ParseValues([]string{"temp=21.5", "rpm=1200"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"temp": 21.5, "rpm": 1200}, values)

	for _, args := range [][]string{nil, {"temp"}, {"=1"}, {"temp=hot"}} {
		_, err := ParseValues(args)
		assert.Error(t, err, "%v", args)
	}
}
