package session

import (
	"sync"
	"time"
)

// InactivityLimit is how long a session survives without a tracked
// interaction.
const InactivityLimit = 15 * time.Minute

// Watchdog runs a single resettable inactivity timer. Touch rearms it; when
// it fires, the expire hook runs exactly once per armed cycle. The shell
// feeds Touch from every tracked interaction.
type Watchdog struct {
	limit    time.Duration
	onExpire func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	armed bool
}

// NewWatchdog builds a stopped Watchdog. A non-positive limit falls back to
// InactivityLimit.
func NewWatchdog(limit time.Duration, onExpire func()) *Watchdog {
	if limit <= 0 {
		limit = InactivityLimit
	}
	return &Watchdog{limit: limit, onExpire: onExpire}
}

// Start arms the timer. Starting an armed watchdog resets it.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = true
	w.reset()
}

// Touch rearms the timer. Touches while stopped are ignored; an expired
// session does not come back from a late interaction.
func (w *Watchdog) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return
	}
	w.reset()
}

// Stop disarms the timer without firing the hook.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// reset replaces the pending timer. Caller holds the lock. Each reset bumps
// the generation; a fire whose timer was superseded while it waited on the
// lock sees a stale generation and backs off, so a concurrent Touch always
// wins over an in-flight expiry.
func (w *Watchdog) reset() {
	w.gen++
	gen := w.gen
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.limit, func() { w.fire(gen) })
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	if !w.armed || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.armed = false
	w.timer = nil
	w.mu.Unlock()

	if w.onExpire != nil {
		w.onExpire()
	}
}
