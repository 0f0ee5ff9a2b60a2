package events

import (
	"sync"
	"sync/atomic"
)

type callbackListener[T any] struct {
	id       uint64
	callback func(T)
	active   atomic.Bool
}

// CallbackEvent provides pub/sub behavior with type-safe callbacks.
// Listeners are called in registration order, outside the lock.
// Once a deregistration function has returned, its callback is never called again,
// even by a Notify that is already iterating over listeners.
type CallbackEvent[T any] struct {
	mu                    sync.RWMutex
	listeners             []*callbackListener[T]
	nextID                uint64
	sendLastEventOnListen bool
	lastEvent             *T
}

// NewCallbackEvent creates a new CallbackEvent instance
// sendLastEventOnListen: if true, the CallbackEvent will remember the last Notify parameter
// and call new listeners immediately with that value if Notify has been called at least once
func NewCallbackEvent[T any](sendLastEventOnListen bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{
		sendLastEventOnListen: sendLastEventOnListen,
	}
}

// Listen registers a callback function to be called when Notify is invoked
// Returns a deregistration function; calling it more than once is a no-op
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("callback cannot be nil")
	}

	l := &callbackListener[T]{callback: callback}
	l.active.Store(true)

	e.mu.Lock()
	l.id = e.nextID
	e.nextID++
	e.listeners = append(e.listeners, l)
	var lastEventCopy *T
	if e.sendLastEventOnListen && e.lastEvent != nil {
		lastEventCopy = new(T)
		*lastEventCopy = *e.lastEvent
	}
	e.mu.Unlock()

	// outside the lock so the callback may call back into the event
	if lastEventCopy != nil {
		callback(*lastEventCopy)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.active.Store(false)
			e.remove(l.id)
		})
	}
}

func (e *CallbackEvent[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Notify calls all registered listener callbacks with the provided value
func (e *CallbackEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.sendLastEventOnListen {
		if e.lastEvent == nil {
			e.lastEvent = new(T)
		}
		*e.lastEvent = value
	}
	listenersCopy := make([]*callbackListener[T], len(e.listeners))
	copy(listenersCopy, e.listeners)
	e.mu.Unlock()

	for _, l := range listenersCopy {
		if l.active.Load() {
			l.callback(value)
		}
	}
}

// Last returns the most recent Notify value. Only tracked when sendLastEventOnListen is set.
func (e *CallbackEvent[T]) Last() (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastEvent == nil {
		var zero T
		return zero, false
	}
	return *e.lastEvent, true
}

// ListenerCount returns the current number of registered listeners
func (e *CallbackEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
