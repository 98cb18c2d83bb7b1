package msgs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/xeno.go/pkg/l0/xeno"
)

type custom struct {
	Log
}

func (m *custom) TypeCode() xeno.TypeCode { return CustomTypeBase }

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	def, err := r.Lookup(EchoType)
	require.NoError(t, err)
	require.Equal(t, "echo", def.Name)
	require.True(t, def.DemandsAck)

	_, err = r.Lookup(0x7777)
	require.Equal(t, xeno.ErrNotFound, err)

	def, err = r.LookupName("clock")
	require.NoError(t, err)
	require.Equal(t, ClockType, def.Code)

	require.Equal(t, ErrReservedType, r.Register("bad", &reserved{}, false))
	err = r.Register("again", (*Ping)(nil), false)
	require.IsType(t, &ErrDuplicateType{}, err)

	require.NoError(t, r.Register("custom", (*custom)(nil), false))
	defs := r.Defs()
	require.Len(t, defs, 6)
	require.Equal(t, CustomTypeBase, defs[5].Code)
}

type reserved struct {
	Ping
}

func (m *reserved) TypeCode() xeno.TypeCode { return xeno.TypeHangup }

func TestEventsRoundTrip(t *testing.T) {
	now := time.Unix(1600000000, 12345)
	testCases := []struct {
		name  string
		event Event
		check func(t *testing.T, ev Event)
	}{
		{"ping", &Ping{}, func(t *testing.T, ev Event) {
			require.IsType(t, &Ping{}, ev)
		}},
		{"log", NewLog("hello"), func(t *testing.T, ev Event) {
			require.Equal(t, "hello", ev.(*Log).Value)
		}},
		{"echo", NewEcho([]byte{1, 2, 3}), func(t *testing.T, ev Event) {
			require.Equal(t, []byte{1, 2, 3}, ev.(*Echo).Value)
		}},
		{"reading", NewReading(map[string]float64{"temp": 21.5, "rh": 40}), func(t *testing.T, ev Event) {
			require.Equal(t, map[string]float64{"temp": 21.5, "rh": 40}, ev.(*Reading).Numbers())
		}},
		{"clock", NewClock(now), func(t *testing.T, ev Event) {
			ts, err := ev.(*Clock).Time()
			require.NoError(t, err)
			require.True(t, now.Equal(ts))
		}},
	}
	r := NewDefaultRegistry()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := Encode(tc.event)
			require.NoError(t, err)
			wire, err := xeno.EncodeFrame(9, tc.event.TypeCode(), payload)
			require.NoError(t, err)

			m := &xeno.Message{}
			require.Equal(t, len(wire), m.Feed(wire))
			require.Equal(t, xeno.AwaitingDecode, m.State)
			def, err := r.Lookup(m.Code)
			require.NoError(t, err)
			ev, err := def.Decode(m.Payload)
			require.NoError(t, err)
			require.Equal(t, tc.event.TypeCode(), ev.TypeCode())
			tc.check(t, ev)
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	def, err := NewDefaultRegistry().Lookup(LogType)
	require.NoError(t, err)
	_, err = def.Decode([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}
