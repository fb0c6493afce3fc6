package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestWatchdogFiresOncePerCycle(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(30*time.Millisecond, func() { fired.Add(1) })
	w.Start()

	waitFor(t, func() bool { return fired.Load() == 1 })

	// Without a fresh Start the hook never runs again, no matter how long we
	// wait or how often we touch.
	w.Touch()
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load())

	w.Start()
	waitFor(t, func() bool { return fired.Load() == 2 })
}

func TestWatchdogTouchResetsTimer(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(80*time.Millisecond, func() { fired.Add(1) })
	w.Start()

	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		w.Touch()
		require.Equal(t, int32(0), fired.Load())
	}

	waitFor(t, func() bool { return fired.Load() == 1 })
}

func TestWatchdogContinuousActivityNeverExpires(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(20*time.Millisecond, func() { fired.Add(1) })
	w.Start()

	// Hammer Touch without pausing so pending timers constantly race the
	// resets. A fire that lost to a fresh interaction must never run the hook.
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		w.Touch()
	}
	w.Stop()

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(0), fired.Load())
}

func TestWatchdogStopPreventsExpiry(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(30*time.Millisecond, func() { fired.Add(1) })
	w.Start()
	w.Stop()

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(0), fired.Load())
}

func TestWatchdogDefaultLimit(t *testing.T) {
	w := NewWatchdog(0, nil)
	require.Equal(t, InactivityLimit, w.limit)
}
