package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(zap.NewNop())
	t.Cleanup(s.Stop)
	return s
}

func counter(n *atomic.Int32) TaskFn {
	return func(time.Duration) { n.Add(1) }
}

func TestTicker_RunsAndReportsElapsed(t *testing.T) {
	s := newScheduler(t)
	dts := make(chan time.Duration, 16)
	s.AddTicker("world_tick", 20*time.Millisecond, func(dt time.Duration) {
		select {
		case dts <- dt:
		default:
		}
	})

	for i := 0; i < 3; i++ {
		select {
		case dt := <-dts:
			assert.GreaterOrEqual(t, dt, 15*time.Millisecond)
			assert.Less(t, dt, time.Second)
		case <-time.After(time.Second):
			t.Fatalf("tick %d never came", i)
		}
	}
}

func TestTicker_ReplaceStopsOld(t *testing.T) {
	s := newScheduler(t)
	var old, fresh atomic.Int32
	s.AddTicker("world_tick", 10*time.Millisecond, counter(&old))
	require.Eventually(t, func() bool { return old.Load() > 0 }, time.Second, 5*time.Millisecond)

	s.AddTicker("world_tick", 10*time.Millisecond, counter(&fresh))
	require.Eventually(t, func() bool { return fresh.Load() >= 2 }, time.Second, 5*time.Millisecond)
	frozen := old.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, frozen, old.Load())
	assert.Equal(t, []string{"world_tick"}, s.ListTickers())
}

func TestRemove(t *testing.T) {
	s := newScheduler(t)
	var ticks, delays atomic.Int32
	s.AddTicker("autosave", 10*time.Millisecond, counter(&ticks))
	s.AddDelay("autosave_retry", 50*time.Millisecond, func() { delays.Add(1) })
	require.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, 5*time.Millisecond)

	s.Remove("autosave")
	s.Remove("autosave_retry")
	s.Remove("never_added")
	frozen := ticks.Load()
	time.Sleep(80 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), frozen+1)
	assert.Zero(t, delays.Load())
	assert.Empty(t, s.ListTickers())
}

func TestDelay_LatestWins(t *testing.T) {
	s := newScheduler(t)
	var got atomic.Int32
	s.AddDelay("autosave_retry", 500*time.Millisecond, func() { got.Add(1) })
	s.AddDelay("autosave_retry", 20*time.Millisecond, func() { got.Add(10) })
	require.Eventually(t, func() bool { return got.Load() == 10 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(10), got.Load())
}

func TestDelay_PanicIsContained(t *testing.T) {
	s := newScheduler(t)
	done := make(chan struct{})
	s.AddDelay("bad", time.Millisecond, func() { panic("snapshot encoder exploded") })
	s.AddDelay("good", 20*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("delay after a panicking one never ran")
	}
}

func TestTicker_PanicCountedAndKeepsRunning(t *testing.T) {
	s := newScheduler(t)
	s.AddTicker("world_tick", 10*time.Millisecond, func(time.Duration) { panic("bad tile") })
	require.Eventually(t, func() bool {
		st := s.Stats()
		return len(st) == 1 && st[0].Panics >= 2
	}, time.Second, 5*time.Millisecond)
	st := s.Stats()[0]
	assert.Equal(t, st.Runs, st.Panics)
}

func TestStats_SortedWithCounters(t *testing.T) {
	s := New(nil)
	t.Cleanup(s.Stop)
	var n atomic.Int32
	s.AddTicker("world_tick", 10*time.Millisecond, counter(&n))
	s.AddTicker("autosave", time.Hour, counter(&n))
	require.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, 5*time.Millisecond)

	st := s.Stats()
	require.Len(t, st, 2)
	assert.Equal(t, "autosave", st[0].Name)
	assert.Zero(t, st[0].Runs)
	assert.Equal(t, "world_tick", st[1].Name)
	assert.Equal(t, 10*time.Millisecond, st[1].Interval)
	assert.Positive(t, st[1].Runs)
	assert.False(t, st[1].LastRun.IsZero())
}

func TestStop_WaitsForRunningTask(t *testing.T) {
	s := New(zap.NewNop())
	started := make(chan struct{})
	var finished atomic.Bool
	var once atomic.Bool
	s.AddTicker("slow", 5*time.Millisecond, func(time.Duration) {
		if !once.CompareAndSwap(false, true) {
			return
		}
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})
	<-started
	s.Stop()
	assert.True(t, finished.Load())
}

func TestStop_CancelsAndIgnoresLaterTasks(t *testing.T) {
	s := New(zap.NewNop())
	var n atomic.Int32
	s.AddDelay("pending", 20*time.Millisecond, func() { n.Add(1) })
	s.Stop()
	s.Stop()

	s.AddTicker("late", 5*time.Millisecond, counter(&n))
	s.AddDelay("late_delay", 5*time.Millisecond, func() { n.Add(1) })
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, n.Load())
	assert.Empty(t, s.ListTickers())
}
