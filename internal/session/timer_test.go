package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimer_ExpiresOnce(t *testing.T) {
	var fired atomic.Int32
	first := make(chan struct{}, 1)
	tm := NewTimer(1, time.Millisecond, func() {
		fired.Add(1)
		first <- struct{}{}
	})
	tm.Start(context.Background())

	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not expire")
	}
	tm.Start(context.Background())
	// Give a stray second expiry a chance to show up.
	time.Sleep(10 * time.Millisecond)

	if n := fired.Load(); n != 1 {
		t.Fatalf("onExpire fired %d times, want 1", n)
	}
	if r := tm.Remaining(); r != 0 {
		t.Fatalf("remaining = %d, want 0", r)
	}
}

func TestTimer_ZeroDurationExpiresImmediately(t *testing.T) {
	fired := make(chan struct{})
	tm := NewTimer(0, time.Hour, func() { close(fired) })
	tm.Start(context.Background())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("zero-duration timer did not expire")
	}
}

func TestTimer_DecrementsOnePerTick(t *testing.T) {
	tm := NewTimer(1, 5*time.Millisecond, nil)
	if r := tm.Remaining(); r != 60 {
		t.Fatalf("initial remaining = %d, want 60", r)
	}
	tm.Start(context.Background())
	defer tm.Stop()

	deadline := time.After(5 * time.Second)
	prev := tm.Remaining()
	for prev > 55 {
		select {
		case <-deadline:
			t.Fatalf("timer stuck at %d", prev)
		case <-time.After(time.Millisecond):
		}
		r := tm.Remaining()
		if r > prev {
			t.Fatalf("remaining increased from %d to %d", prev, r)
		}
		prev = r
	}
}

func TestTimer_StopReleasesGoroutine(t *testing.T) {
	var fired atomic.Bool
	tm := NewTimer(10, time.Millisecond, func() { fired.Store(true) })
	tm.Start(context.Background())
	tm.Stop()
	tm.Stop()

	select {
	case <-tm.Done():
	case <-time.After(time.Second):
		t.Fatal("timer goroutine still running after Stop")
	}

	left := tm.Remaining()
	time.Sleep(10 * time.Millisecond)
	if tm.Remaining() != left {
		t.Fatal("timer kept ticking after Stop")
	}
	if fired.Load() {
		t.Fatal("stopped timer fired onExpire")
	}
}

func TestTimer_ContextCancelStops(t *testing.T) {
	var fired atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	tm := NewTimer(0, time.Millisecond, func() { fired.Store(true) })
	tm.Stop()
	cancel()
	tm.Start(ctx)

	<-tm.Done()
	if fired.Load() {
		t.Fatal("timer stopped before start fired onExpire")
	}
}
