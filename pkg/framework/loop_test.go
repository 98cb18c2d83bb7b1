package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testMsg struct {
	val int
}

func (m *testMsg) NewMessage() Message { return &testMsg{} }

func TestLoopIterationOrder(t *testing.T) {
	loop := NewLoop()
	now := time.Unix(42, 0)
	loop.Clock = func() time.Time { return now }

	var order []int
	loop.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		order = append(order, cc.PriorityLevel())
		require.Equal(t, now, cc.Time())
		return nil
	}))
	loop.AddController(PrLvLink, ControlFunc(func(cc ControlContext) error {
		order = append(order, cc.PriorityLevel())
		return nil
	}))
	loop.PreRunAt(PrLvTop, ControlFunc(func(cc ControlContext) error {
		order = append(order, -1)
		return nil
	}))
	loop.RunIteration(context.Background())
	require.Equal(t, []int{-1, PrLvLink, PrLvControl}, order)

	order = nil
	loop.RunIteration(context.Background())
	require.Equal(t, []int{PrLvLink, PrLvControl}, order, "pre-run hooks are one-shot")
}

func TestLoopMessages(t *testing.T) {
	loop := NewLoop()
	var taken []int
	loop.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			m := mc.CurrentMessage().(*testMsg)
			if m.val%2 == 0 {
				taken = append(taken, m.val)
				mc.MessageTaken()
			}
		}))
		return nil
	}))
	var left int
	loop.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		left = cc.Messages().Len()
		return nil
	}))
	for i := 1; i <= 4; i++ {
		loop.PostMessage(&testMsg{val: i})
	}
	loop.RunIteration(context.Background())
	require.Equal(t, []int{2, 4}, taken)
	require.Equal(t, 2, left)

	// untaken messages survive to the next iteration.
	taken = nil
	loop.RunIteration(context.Background())
	require.Empty(t, taken)
	require.Equal(t, 2, left)
}

func TestLoopStopProcessing(t *testing.T) {
	loop := NewLoop()
	var seen []int
	loop.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			seen = append(seen, mc.CurrentMessage().(*testMsg).val)
			mc.MessageTaken()
			mc.StopProcessing()
		}))
		return nil
	}))
	loop.PostMessage(&testMsg{val: 1})
	loop.PostMessage(&testMsg{val: 2})
	loop.RunIteration(context.Background())
	require.Equal(t, []int{1}, seen)
	loop.RunIteration(context.Background())
	require.Equal(t, []int{1, 2}, seen)
}

type failingRunnable struct {
	err error
}

func (r *failingRunnable) Run(context.Context) error { return r.err }

func TestLoopStopsWhenRunnerStops(t *testing.T) {
	expected := errors.New("link closed")
	loop := NewLoop()
	loop.AddRunnable(&failingRunnable{err: expected})
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(context.Background()) }()
	select {
	case err := <-errCh:
		require.Error(t, err)
		require.True(t, errors.Is(err, expected))
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	one := errors.New("one")
	errs.Add(one)
	require.Equal(t, "one", errs.Aggregate().Error())
	errs.Add(errors.New("two"))
	require.Equal(t, "2 errors:\n\tone\n\ttwo", errs.Error())
	require.True(t, errors.Is(errs.Aggregate(), one))
}
