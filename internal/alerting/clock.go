package alerting

import "time"

// Clock abstracts wall time and one-shot timers so the escalation chain can be
// driven with virtual time in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable one-shot timer handle.
type Timer interface {
	// Stop reports whether the timer was stopped before firing.
	Stop() bool
}

type realClock struct{}

// NewRealClock returns a Clock backed by the time package.
func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
