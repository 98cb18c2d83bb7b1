package xeno

// Scanner decodes a byte stream passively, without a session: it never
// sends anything. It is meant for taps and capture files, where the
// stream may start in the middle of a frame.
//
// After a framing error the Scanner skips bytes until the next sync
// marker.
type Scanner struct {
	pool    *Pool
	current *Message
	acc     []byte
	aligned bool

	// MaxFrameLength rejects frames declaring a longer length, so a
	// corrupt length prefix costs a few bytes instead of swallowing the
	// markers behind it.
	MaxFrameLength int

	Frames    int
	Markers   int
	Errors    int
	Discarded int
}

// NewScanner creates a Scanner. It starts out trusting the stream.
func NewScanner() *Scanner {
	return &Scanner{pool: NewPool(1), aligned: true, MaxFrameLength: DefaultMaxFrameLength}
}

// Aligned reports whether the scanner trusts frame boundaries.
func (s *Scanner) Aligned() bool {
	return s.aligned
}

// Scan feeds data and calls fn with every message completed by it: frames
// (AwaitingDecode), markers (SyncPacket) and failures (Error). The message
// is only valid during the call.
func (s *Scanner) Scan(data []byte, fn func(*Message)) {
	s.acc = append(s.acc, data...)
	buf := s.acc
	for len(buf) > 0 {
		if !s.aligned {
			// unlike a session, a tap keeps every frame after the first
			// marker, so it stops at the first one.
			idx := ContainsSyncPattern(buf)
			if idx < 0 {
				rest, _ := ScanBufferForSync(buf)
				s.Discarded += len(buf) - len(rest)
				buf = rest
				break
			}
			s.Discarded += idx
			buf = buf[idx:]
			s.aligned = true
		}
		if s.current == nil {
			s.current = s.pool.Fetch()
			if s.MaxFrameLength > 0 {
				s.current.MaxLength = uint32(s.MaxFrameLength)
			}
		}
		n := s.current.Feed(buf)
		if n == 0 {
			break
		}
		buf = buf[n:]
		m := s.current
		if !m.State.Terminal() {
			continue
		}
		s.current = nil
		switch m.State {
		case AwaitingDecode:
			s.Frames++
		case SyncPacket:
			s.Markers++
		case Error:
			s.Errors++
			s.aligned = false
		}
		if fn != nil {
			fn(m)
		}
		s.pool.Reclaim(m)
	}
	s.acc = append(s.acc[:0], buf...)
}

// Stats reports the scanner counters in the shape of session Stats.
func (s *Scanner) Stats() Stats {
	return Stats{
		FramesDecoded:       s.Frames,
		FramingErrors:       s.Errors,
		SyncPacketsReceived: s.Markers,
		Pool:                s.pool.Stats(),
	}
}
