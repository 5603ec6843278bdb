package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTickInterval is the wall-clock period of one countdown tick.
const DefaultTickInterval = time.Second

// Timer counts down whole seconds and fires onExpire exactly once when it
// reaches zero. Each tick subtracts exactly one second; drift is not corrected.
type Timer struct {
	remaining atomic.Int64
	interval  time.Duration
	onExpire  func()

	startOnce  sync.Once
	stopOnce   sync.Once
	expireOnce sync.Once
	stop       chan struct{}
	done       chan struct{}
}

// NewTimer creates a stopped timer for durationMinutes. Negative durations are treated as zero.
func NewTimer(durationMinutes int, interval time.Duration, onExpire func()) *Timer {
	if durationMinutes < 0 {
		durationMinutes = 0
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	t := &Timer{
		interval: interval,
		onExpire: onExpire,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	t.remaining.Store(int64(durationMinutes) * 60)
	return t
}

// Start begins ticking in a background goroutine. Later calls are ignored.
// Cancelling ctx stops the timer without firing onExpire.
func (t *Timer) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		go func() {
			if t.run(ctx) {
				t.expireOnce.Do(func() {
					if t.onExpire != nil {
						t.onExpire()
					}
				})
			}
		}()
	})
}

// run ticks until expiry (returns true) or cancellation (returns false).
func (t *Timer) run(ctx context.Context) bool {
	defer close(t.done)

	select {
	case <-t.stop:
		return false
	default:
	}
	if t.remaining.Load() <= 0 {
		return true
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return false
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if t.remaining.Add(-1) <= 0 {
				t.remaining.Store(0)
				return true
			}
		}
	}
}

// Stop halts ticking. It is idempotent and never blocks, so it may be
// called from within onExpire.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Remaining returns the seconds left.
func (t *Timer) Remaining() int {
	return int(t.remaining.Load())
}

// Done is closed once the ticking goroutine has exited.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}
