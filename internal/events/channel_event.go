package events

import (
	"sync"
)

type channelListener[T any] struct {
	id uint64
	ch chan<- T
}

// ChannelEvent provides pub/sub behavior using channels.
// Sends never block: a full channel misses that value.
type ChannelEvent[T any] struct {
	mu                    sync.RWMutex
	listeners             []channelListener[T]
	nextID                uint64
	sendLastEventOnListen bool
	lastEvent             *T
}

// NewChannelEvent creates a new ChannelEvent instance
// sendLastEventOnListen: if true, the ChannelEvent will remember the last Notify parameter
// and send it to new listeners immediately if Notify has been called at least once
func NewChannelEvent[T any](sendLastEventOnListen bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{
		sendLastEventOnListen: sendLastEventOnListen,
	}
}

// Listen registers a channel to receive values when Notify is invoked
// Returns a deregistration function; calling it more than once is a no-op
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("channel cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, channelListener[T]{id: id, ch: ch})
	var lastEventCopy *T
	if e.sendLastEventOnListen && e.lastEvent != nil {
		lastEventCopy = new(T)
		*lastEventCopy = *e.lastEvent
	}
	e.mu.Unlock()

	if lastEventCopy != nil {
		select {
		case ch <- *lastEventCopy:
		default:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, l := range e.listeners {
				if l.id == id {
					e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Notify sends the provided value to all registered channels without blocking
func (e *ChannelEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.sendLastEventOnListen {
		if e.lastEvent == nil {
			e.lastEvent = new(T)
		}
		*e.lastEvent = value
	}
	listenersCopy := make([]channelListener[T], len(e.listeners))
	copy(listenersCopy, e.listeners)
	e.mu.Unlock()

	for _, l := range listenersCopy {
		select {
		case l.ch <- value:
		default:
			// slow listener, drop
		}
	}
}

// ListenerCount returns the current number of registered listeners
func (e *ChannelEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
