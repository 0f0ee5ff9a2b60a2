// Package sched provides the single dispatch context every timer-driven part of the
// gait core runs on: frame ticks, the elapsed-time clock, and scan/connect delays.
//
// Callbacks of one Scheduler never run concurrently with each other. A Cancel
// issued from inside a callback (or from a function handed to Post) takes effect
// before the next callback is dispatched, so a cancelled callback never runs
// after Cancel returns.
package sched

import "time"

// Cancel stops a scheduled callback. Calling it more than once is a no-op.
type Cancel func()

// Scheduler runs callbacks serially at scheduled times
type Scheduler interface {
	// Now returns the scheduler's current time
	Now() time.Time
	// After runs fn once after d
	After(d time.Duration, fn func()) Cancel
	// Every runs fn every interval until cancelled. interval must be positive.
	Every(interval time.Duration, fn func()) Cancel
	// Post runs fn on the dispatch context as soon as possible
	Post(fn func())
	// Do runs fn on the dispatch context and waits for it to return. It is how
	// other goroutines call into code owned by the dispatch context.
	Do(fn func())
}
