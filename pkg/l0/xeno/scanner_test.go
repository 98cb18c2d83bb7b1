package xeno

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanner(t *testing.T) {
	f1 := mustFrame(t, 1, testPlainType, []byte("one"))
	f2 := mustFrame(t, 2, testAckedType, []byte("two"))
	bad := mustFrame(t, 3, testPlainType, []byte("bad"))
	bad[3]++
	in := cat(f1, bad, []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee}, testMarker, f2, testMarker)

	for _, chunk := range []int{1, 5, len(in)} {
		s := NewScanner()
		var ids []MessageID
		var states []ProcState
		for off := 0; off < len(in); off += chunk {
			end := off + chunk
			if end > len(in) {
				end = len(in)
			}
			s.Scan(in[off:end], func(m *Message) {
				states = append(states, m.State)
				if m.State == AwaitingDecode {
					ids = append(ids, m.ID)
				}
			})
		}
		require.Equal(t, []MessageID{1, 2}, ids, "chunk %d", chunk)
		require.Equal(t, 2, s.Frames)
		require.Equal(t, 1, s.Errors)
		require.Equal(t, 2, s.Markers)
		require.True(t, s.Aligned())
		require.Contains(t, states, SyncPacket)
		require.Equal(t, 0, s.pool.Stats().Live)
		st := s.Stats()
		require.Equal(t, 2, st.FramesDecoded)
		require.Equal(t, 1, st.FramingErrors)
	}
}

func TestScannerCorruptLength(t *testing.T) {
	// the length prefix declares ~16MB; the markers and frames behind it
	// must still be seen.
	corrupt := []byte{0xff, 0xff, 0xff, 0x00, 0x01, 0x00, 0x34, 0x12}
	var trailer []byte
	const n = 1000
	for i := 0; i < n; i++ {
		trailer = append(trailer, testMarker...)
		trailer = append(trailer, mustFrame(t, MessageID(i+1), testPlainType, bytes.Repeat([]byte{byte(i)}, 16))...)
	}
	tests := []struct {
		name   string
		max    int
		frames int
	}{
		{"default", DefaultMaxFrameLength, n},
		{"unlimited", 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScanner()
			s.MaxFrameLength = tc.max
			s.Scan(cat(corrupt, trailer), nil)
			require.Equal(t, tc.frames, s.Frames)
			if tc.frames == 0 {
				require.Zero(t, s.Errors)
				return
			}
			require.Equal(t, 1, s.Errors)
			require.Equal(t, n, s.Markers)
			require.Equal(t, 4, s.Discarded)
			require.True(t, s.Aligned())
			require.Zero(t, s.pool.Stats().Live)
		})
	}
}
