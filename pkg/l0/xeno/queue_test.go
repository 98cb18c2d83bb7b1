package xeno

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func queueIDs(q *Queue) []MessageID {
	ids := make([]MessageID, 0, q.Len())
	for i := 0; i < q.Len(); i++ {
		ids = append(ids, q.At(i).ID)
	}
	return ids
}

func TestQueue(t *testing.T) {
	q := NewQueue(3)
	require.Nil(t, q.Front())
	require.Nil(t, q.PopFront())

	for id := MessageID(1); id <= 3; id++ {
		require.NoError(t, q.PushBack(&Message{ID: id}))
	}
	require.Equal(t, ErrQueueFull, q.PushBack(&Message{ID: 4}))
	require.Equal(t, ErrQueueFull, q.PushFront(&Message{ID: 4}))
	require.Equal(t, []MessageID{1, 2, 3}, queueIDs(q))

	require.Equal(t, MessageID(1), q.PopFront().ID)
	require.NoError(t, q.PushFront(&Message{ID: 9}))
	require.Equal(t, []MessageID{9, 2, 3}, queueIDs(q))
	require.Equal(t, MessageID(9), q.Front().ID)
	require.Equal(t, 3, q.Cap())
}

func TestQueueRemove(t *testing.T) {
	q := NewQueue(8)
	for id := MessageID(1); id <= 5; id++ {
		require.NoError(t, q.PushBack(&Message{ID: id}))
	}
	m := q.Remove(func(m *Message) bool { return m.ID%2 == 0 })
	require.Equal(t, MessageID(2), m.ID)
	require.Equal(t, []MessageID{1, 3, 4, 5}, queueIDs(q))
	require.Nil(t, q.Remove(func(m *Message) bool { return m.ID == 7 }))
	require.Equal(t, []MessageID{1, 3, 4, 5}, queueIDs(q))

	var drained []MessageID
	q.Drain(func(m *Message) { drained = append(drained, m.ID) })
	require.Equal(t, []MessageID{1, 3, 4, 5}, drained)
	require.Zero(t, q.Len())
}
