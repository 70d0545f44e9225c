package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := New(16)
	l.Start()
	defer l.Stop()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, l.Post(func() { order = append(order, i) }))
	}
	require.NoError(t, l.Call(context.Background(), func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLoopCallAfterStop(t *testing.T) {
	l := New(4)
	l.Start()
	l.Stop()

	err := l.Call(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, l.Post(func() {}))
}

func TestLoopStopDrainsQueue(t *testing.T) {
	l := New(16)
	var ran int32
	for i := 0; i < 3; i++ {
		l.Post(func() { atomic.AddInt32(&ran, 1) })
	}
	l.Start()
	l.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
}

func TestLoopAfterFuncRunsOnLoop(t *testing.T) {
	l := New(16)
	l.Start()
	defer l.Stop()

	fired := make(chan struct{})
	l.Post(func() {
		l.AfterFunc(5*time.Millisecond, func() { close(fired) })
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer callback never ran")
	}
}

func TestLoopTimerStopCancels(t *testing.T) {
	l := New(16)
	l.Start()
	defer l.Stop()

	var fired int32
	var stopped bool
	require.NoError(t, l.Call(context.Background(), func() {
		timer := l.AfterFunc(20*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) })
		stopped = timer.Stop()
	}))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, l.Call(context.Background(), func() {}))

	assert.True(t, stopped)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestManualAdvance(t *testing.T) {
	m := NewManual()
	var got []string
	m.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })
	m.AfterFunc(10*time.Millisecond, func() {
		got = append(got, "a")
		m.AfterFunc(5*time.Millisecond, func() { got = append(got, "a2") })
	})
	stopped := m.AfterFunc(15*time.Millisecond, func() { got = append(got, "x") })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	m.Advance(9 * time.Millisecond)
	assert.Empty(t, got)

	m.Advance(11 * time.Millisecond)
	assert.Equal(t, []string{"a", "a2", "b"}, got)
	assert.Equal(t, 0, m.Pending())
}
