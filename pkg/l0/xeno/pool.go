package xeno

// Pool reuses a fixed set of preallocated Messages. When the free list
// runs dry, messages come from the heap instead and the pool counts the
// starvation: a steady non-zero Starved means the capacity is undersized.
//
// A Pool is not safe for concurrent use.
type Pool struct {
	slots []Message
	free  []int

	starved   int
	heapLive  int
	heapFreed int
}

// PoolStats are the counters of a Pool.
type PoolStats struct {
	Capacity  int
	Free      int
	Live      int
	Starved   int
	HeapFreed int
}

// NewPool creates a Pool with n preallocated Messages.
func NewPool(n int) *Pool {
	p := &Pool{
		slots: make([]Message, n),
		free:  make([]int, n),
	}
	for i := range p.slots {
		p.slots[i].slot = slot{kind: slotPooled, index: i}
		// pop order is ascending index.
		p.free[i] = n - 1 - i
	}
	return p
}

// Fetch returns a reset Message ready for use.
func (p *Pool) Fetch() *Message {
	var m *Message
	if n := len(p.free); n > 0 {
		m = &p.slots[p.free[n-1]]
		p.free = p.free[:n-1]
	} else {
		m = &Message{slot: slot{kind: slotHeap}}
		p.starved++
		p.heapLive++
	}
	m.live = true
	return m
}

// Reclaim returns a Message to the pool. Every fetched Message must be
// reclaimed exactly once.
func (p *Pool) Reclaim(m *Message) error {
	if m == nil {
		return nil
	}
	if !m.live {
		return ErrDoubleReclaim
	}
	m.ack.Disarm()
	m.live = false
	if idx, pooled := m.Pooled(); pooled && idx < len(p.slots) && &p.slots[idx] == m {
		m.reset()
		p.free = append(p.free, idx)
		return nil
	}
	m.Event, m.Payload, m.wire = nil, nil, nil
	if p.heapLive > 0 {
		p.heapLive--
	}
	p.heapFreed++
	return nil
}

// Stats returns the pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Capacity:  len(p.slots),
		Free:      len(p.free),
		Live:      len(p.slots) - len(p.free) + p.heapLive,
		Starved:   p.starved,
		HeapFreed: p.heapFreed,
	}
}
