package clock

import (
	"testing"
	"time"
)

func TestVirtualClockAdvanceFiresDueTimers(t *testing.T) {
	vc := NewVirtualClock(time.Unix(0, 0))

	fired := 0
	vc.AfterFunc(5*time.Second, func() { fired++ })
	vc.AfterFunc(10*time.Second, func() { fired++ })

	if n := vc.Advance(4 * time.Second); n != 0 {
		t.Fatalf("expected 0 timers fired, got %d", n)
	}
	if fired != 0 {
		t.Fatalf("expected 0 fired callbacks, got %d", fired)
	}

	if n := vc.Advance(2 * time.Second); n != 1 {
		t.Fatalf("expected 1 timer fired, got %d", n)
	}
	if fired != 1 {
		t.Fatalf("expected 1 fired callback, got %d", fired)
	}

	vc.Advance(10 * time.Second)
	if fired != 2 {
		t.Fatalf("expected 2 fired callbacks, got %d", fired)
	}
}

func TestVirtualClockTimerStop(t *testing.T) {
	vc := NewVirtualClock(time.Unix(0, 0))

	fired := false
	timer := vc.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("expected Stop to succeed before deadline")
	}
	if timer.Stop() {
		t.Fatal("expected second Stop to report already-stopped")
	}

	vc.Advance(time.Minute)
	if fired {
		t.Fatal("cancelled timer must not fire")
	}
	if vc.PendingTimers() != 0 {
		t.Fatalf("expected 0 pending timers, got %d", vc.PendingTimers())
	}
}

func TestVirtualClockNowAdvances(t *testing.T) {
	start := time.Unix(1000, 0)
	vc := NewVirtualClock(start)

	vc.Advance(30 * time.Second)

	if got := vc.Now(); !got.Equal(start.Add(30 * time.Second)) {
		t.Fatalf("expected %v, got %v", start.Add(30*time.Second), got)
	}
}
