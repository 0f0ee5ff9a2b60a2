package connection

import (
	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/sched"
	"github.com/impact-insoles/insole-app/internal/telemetry"
)

// Transport discovers and connects to insoles.
//
// Both operations are asynchronous: they return straight away and later call
// exactly one of their callbacks on the scheduler's dispatch context, never
// before returning. Calling the returned Cancel stops the work; callbacks that
// still arrive afterwards are ignored by the Machine.
type Transport interface {
	Discover(found func(gait.Device), failed func(error)) sched.Cancel
	Connect(device gait.Device, connected func(Link), failed func(error)) sched.Cancel
}

// Link is an established connection to one insole
type Link interface {
	// Source returns the frame stream of the connected insole
	Source() telemetry.Source
	// OnLost registers a callback run on the dispatch context when the link
	// drops. Returns a deregistration function.
	OnLost(callback func(cause error)) func()
	// Close tears the link down. It does not trigger OnLost.
	Close() error
}
