// Package clock abstracts time so the scheduler's poll timers and
// processing-interval checks can be driven deterministically in tests.
package clock

import "time"

// Timer is the subset of time.Timer the scheduler relies on.
type Timer interface {
	Stop() bool
}

// Clock provides the current time and schedules one-shot callbacks.
// RealClock wraps the time package directly; VirtualClock lets tests
// advance time explicitly without sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock is the production Clock backed by the time package.
type RealClock struct{}

// New returns the production clock.
func New() Clock {
	return RealClock{}
}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
