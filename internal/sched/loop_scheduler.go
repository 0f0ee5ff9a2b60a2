package sched

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/impact-insoles/insole-app/internal/go_func_utils"
)

// LoopScheduler runs all callbacks on one goroutine using the wall clock
type LoopScheduler struct {
	logger *log.Logger

	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

var _ Scheduler = (*LoopScheduler)(nil)

// NewLoopScheduler creates a scheduler and starts its dispatch goroutine
func NewLoopScheduler(logger *log.Logger) *LoopScheduler {
	if logger == nil {
		panic("LoopScheduler: logger cannot be nil")
	}
	l := &LoopScheduler{
		logger:  logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go_func_utils.SafeGo(logger, "LoopScheduler", l.run)
	return l
}

func (l *LoopScheduler) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			if len(l.queue) == 0 || l.closed {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			fn()
		}
	}
}

func (l *LoopScheduler) Now() time.Time {
	return time.Now()
}

// Post queues fn for the dispatch goroutine. Dropped after Close.
func (l *LoopScheduler) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the dispatch goroutine and waits for it to finish.
// Must not be called from a scheduler callback.
func (l *LoopScheduler) Do(fn func()) {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
	case <-l.stopped:
	}
}

func (l *LoopScheduler) After(d time.Duration, fn func()) Cancel {
	return l.schedule(d, 0, fn)
}

func (l *LoopScheduler) Every(interval time.Duration, fn func()) Cancel {
	if interval <= 0 {
		panic("LoopScheduler: interval must be > 0")
	}
	return l.schedule(interval, interval, fn)
}

type loopTimer struct {
	mu        sync.Mutex
	timer     *time.Timer
	next      time.Time
	interval  time.Duration
	fn        func()
	cancelled atomic.Bool
}

func (l *LoopScheduler) schedule(d, interval time.Duration, fn func()) Cancel {
	t := &loopTimer{interval: interval, fn: fn}

	t.mu.Lock()
	t.next = time.Now().Add(d)
	t.timer = time.AfterFunc(d, func() { l.Post(func() { l.fire(t) }) })
	t.mu.Unlock()

	return func() {
		t.cancelled.Store(true)
		t.mu.Lock()
		t.timer.Stop()
		t.mu.Unlock()
	}
}

// fire runs on the dispatch goroutine
func (l *LoopScheduler) fire(t *loopTimer) {
	if t.cancelled.Load() {
		return
	}
	t.fn()
	if t.interval == 0 || t.cancelled.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	// keep a fixed rate; a late tick shortens the next wait instead of drifting
	t.next = t.next.Add(t.interval)
	wait := time.Until(t.next)
	if wait < 0 {
		wait = 0
		t.next = time.Now()
	}
	t.timer.Reset(wait)
}

// Close stops the dispatch goroutine. Pending callbacks are dropped.
func (l *LoopScheduler) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()

	close(l.done)
	<-l.stopped
	l.logger.Println("LoopScheduler: stopped")
}
