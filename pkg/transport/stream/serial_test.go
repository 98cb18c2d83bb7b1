package stream

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestSerialMode(t *testing.T) {
	tests := []struct {
		query string
		mode  serial.Mode
		err   bool
	}{
		{"", serial.Mode{BaudRate: 115200, DataBits: 8}, false},
		{"baud=9600", serial.Mode{BaudRate: 9600, DataBits: 8}, false},
		{"baud=57600&databits=7&parity=even&stopbits=2",
			serial.Mode{BaudRate: 57600, DataBits: 7, Parity: serial.EvenParity, StopBits: serial.TwoStopBits}, false},
		{"parity=odd&stopbits=1.5",
			serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.OddParity, StopBits: serial.OnePointFiveStopBits}, false},
		{"baud=fast", serial.Mode{}, true},
		{"baud=0", serial.Mode{}, true},
		{"databits=9", serial.Mode{}, true},
		{"parity=maybe", serial.Mode{}, true},
		{"stopbits=3", serial.Mode{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)
			mode, err := SerialMode(q)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.mode, *mode)
		})
	}
}

func TestOpenSerialErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "ttyNone")
	for _, raw := range []string{
		"serial://" + missing,
		"serial://" + missing + "?baud=115200",
		"serial:///dev/ttyS0?parity=maybe",
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		_, err = Open(context.Background(), u)
		assert.Error(t, err, raw)
	}
}
