// Package telemetry defines how sensor frames reach the gait core and provides
// a deterministic gait simulator plus the payload decoder used by real links.
package telemetry

import (
	"github.com/impact-insoles/insole-app/internal/events"
	"github.com/impact-insoles/insole-app/internal/gait"
)

// FrameHandler receives one sensor frame
type FrameHandler func(frame gait.SensorFrame)

// Unsubscribe detaches a FrameHandler. Once it has returned no further frame is
// delivered to that handler. Calling it more than once is a no-op.
type Unsubscribe func()

// Source produces a live sequence of sensor frames.
// Frames are delivered on the source's scheduler, never from inside Subscribe.
type Source interface {
	Subscribe(onFrame FrameHandler) Unsubscribe
}

// Fanout delivers frames to the current subscribers and reports when the first
// subscriber arrives and the last one leaves. Sources embed one to implement
// Subscribe. Not safe for concurrent use; drive it from one dispatch context.
type Fanout struct {
	event   *events.CallbackEvent[gait.SensorFrame]
	onFirst func()
	onLast  func()
}

// NewFanout creates a Fanout; either hook may be nil
func NewFanout(onFirst, onLast func()) *Fanout {
	return &Fanout{
		event:   events.NewCallbackEvent[gait.SensorFrame](false),
		onFirst: onFirst,
		onLast:  onLast,
	}
}

// Subscribe attaches onFrame and returns its idempotent Unsubscribe
func (f *Fanout) Subscribe(onFrame FrameHandler) Unsubscribe {
	if onFrame == nil {
		panic("telemetry: onFrame cannot be nil")
	}
	unregister := f.event.Listen(onFrame)
	if f.event.ListenerCount() == 1 && f.onFirst != nil {
		f.onFirst()
	}
	done := false
	return func() {
		if done {
			return
		}
		done = true
		unregister()
		if f.event.ListenerCount() == 0 && f.onLast != nil {
			f.onLast()
		}
	}
}

// Publish delivers frame to every current subscriber in subscription order
func (f *Fanout) Publish(frame gait.SensorFrame) {
	f.event.Notify(frame)
}

// Subscribers returns the number of attached handlers
func (f *Fanout) Subscribers() int {
	return f.event.ListenerCount()
}
