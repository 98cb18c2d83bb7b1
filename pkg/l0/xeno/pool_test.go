package xeno

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolFetchOrder(t *testing.T) {
	p := NewPool(3)
	for i := 0; i < 3; i++ {
		m := p.Fetch()
		idx, pooled := m.Pooled()
		require.True(t, pooled)
		require.Equal(t, i, idx)
	}
	require.Equal(t, PoolStats{Capacity: 3, Free: 0, Live: 3}, p.Stats())
}

func TestPoolIdempotentReclaim(t *testing.T) {
	p := NewPool(4)
	held := p.Fetch()
	before := append([]int(nil), p.free...)
	stats := p.Stats()

	m := p.Fetch()
	m.ID, m.Code, m.State = 9, 0x1234, AwaitingDecode
	m.Payload = append(m.Payload, 1, 2, 3)
	require.NoError(t, p.Reclaim(m))

	require.Equal(t, before, p.free)
	require.Equal(t, stats, p.Stats())
	require.Equal(t, MessageID(0), m.ID)
	require.Equal(t, Uninitialized, m.State)
	require.Empty(t, m.Payload)
	require.NoError(t, p.Reclaim(held))
}

func TestPoolStarvation(t *testing.T) {
	p := NewPool(1)
	a := p.Fetch()
	b := p.Fetch()
	_, pooled := b.Pooled()
	require.False(t, pooled)
	require.Equal(t, 1, p.Stats().Starved)
	require.Equal(t, 2, p.Stats().Live)

	require.NoError(t, p.Reclaim(b))
	require.NoError(t, p.Reclaim(a))
	require.Equal(t, PoolStats{Capacity: 1, Free: 1, Live: 0, Starved: 1, HeapFreed: 1}, p.Stats())
}

func TestPoolDoubleReclaim(t *testing.T) {
	p := NewPool(2)
	m := p.Fetch()
	require.NoError(t, p.Reclaim(m))
	require.Equal(t, ErrDoubleReclaim, p.Reclaim(m))
	require.Equal(t, 2, p.Stats().Free)

	h := NewPool(0).Fetch()
	require.NoError(t, p.Reclaim(h))
	require.Equal(t, ErrDoubleReclaim, p.Reclaim(h))
}

func TestPoolForeignSlot(t *testing.T) {
	p1, p2 := NewPool(1), NewPool(1)
	m := p1.Fetch()
	// a slot of another pool is released like a heap message.
	require.NoError(t, p2.Reclaim(m))
	require.Equal(t, 1, p2.Stats().Free)
	require.Equal(t, 1, p2.Stats().HeapFreed)
}
