package sched

import (
	"sync"
	"time"
)

// ManualScheduler is a virtual-time Scheduler. Nothing runs until Advance is
// called; callbacks then run on the calling goroutine in due-time order.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	nextSeq uint64
	entries []*manualEntry
}

type manualEntry struct {
	due       time.Time
	seq       uint64
	interval  time.Duration
	fn        func()
	cancelled bool
}

var _ Scheduler = (*ManualScheduler)(nil)

// NewManualScheduler creates a scheduler whose clock starts at start
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) After(d time.Duration, fn func()) Cancel {
	return s.add(d, 0, fn)
}

func (s *ManualScheduler) Every(interval time.Duration, fn func()) Cancel {
	if interval <= 0 {
		panic("ManualScheduler: interval must be > 0")
	}
	return s.add(interval, interval, fn)
}

func (s *ManualScheduler) Post(fn func()) {
	s.add(0, 0, fn)
}

// Do runs fn straight away: the goroutine driving Advance is the dispatch context
func (s *ManualScheduler) Do(fn func()) {
	fn()
}

func (s *ManualScheduler) add(d, interval time.Duration, fn func()) Cancel {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &manualEntry{
		due:      s.now.Add(d),
		seq:      s.nextSeq,
		interval: interval,
		fn:       fn,
	}
	s.nextSeq++
	s.entries = append(s.entries, e)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		e.cancelled = true
		s.removeLocked(e)
	}
}

func (s *ManualScheduler) removeLocked(e *manualEntry) {
	for i, other := range s.entries {
		if other == e {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, running every callback that falls due
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *manualEntry
		for _, e := range s.entries {
			if e.due.After(target) {
				continue
			}
			if next == nil || e.due.Before(next.due) || (e.due.Equal(next.due) && e.seq < next.seq) {
				next = e
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.due
		if next.interval > 0 {
			next.due = next.due.Add(next.interval)
			next.seq = s.nextSeq
			s.nextSeq++
		} else {
			s.removeLocked(next)
		}
		s.mu.Unlock()

		next.fn()
	}
}

// RunPending runs everything due at the current time, including posted callbacks
func (s *ManualScheduler) RunPending() {
	s.Advance(0)
}

// Pending returns the number of scheduled callbacks
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
