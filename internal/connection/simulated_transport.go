package connection

import (
	"log"
	"sync"
	"time"

	"github.com/impact-insoles/insole-app/internal/events"
	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/sched"
	"github.com/impact-insoles/insole-app/internal/telemetry"
)

const (
	DefaultScanDelay    = 2 * time.Second
	DefaultConnectDelay = time.Second
)

// DefaultSimulatedDevice is the insole a simulated scan always finds
var DefaultSimulatedDevice = gait.Device{
	ID:             "mock-device-001",
	Name:           "ImpactInsoles",
	SignalStrength: -62,
}

// SimulatedTransportConfig holds configuration for a SimulatedTransport
type SimulatedTransportConfig struct {
	ScanDelay    time.Duration // defaults to DefaultScanDelay
	ConnectDelay time.Duration // defaults to DefaultConnectDelay
	Device       gait.Device   // defaults to DefaultSimulatedDevice
	Source       telemetry.SimulatedSourceConfig
}

// SimulatedTransport implements Transport without Bluetooth hardware. Scans and
// handshakes always succeed after fixed delays and links stream a simulated gait.
type SimulatedTransport struct {
	logger    *log.Logger
	scheduler sched.Scheduler
	config    SimulatedTransportConfig

	mu   sync.Mutex
	link *SimulatedLink
}

var _ Transport = (*SimulatedTransport)(nil)

// NewSimulatedTransport creates a simulated transport driven by scheduler
func NewSimulatedTransport(logger *log.Logger, scheduler sched.Scheduler, config SimulatedTransportConfig) *SimulatedTransport {
	if logger == nil {
		panic("SimulatedTransport: logger cannot be nil")
	}
	if scheduler == nil {
		panic("SimulatedTransport: scheduler cannot be nil")
	}
	if config.ScanDelay <= 0 {
		config.ScanDelay = DefaultScanDelay
	}
	if config.ConnectDelay <= 0 {
		config.ConnectDelay = DefaultConnectDelay
	}
	if config.Device == (gait.Device{}) {
		config.Device = DefaultSimulatedDevice
	}
	return &SimulatedTransport{
		logger:    logger,
		scheduler: scheduler,
		config:    config,
	}
}

func (t *SimulatedTransport) Discover(found func(gait.Device), failed func(error)) sched.Cancel {
	t.logger.Printf("SimulatedTransport: scan started")
	device := t.config.Device
	return t.scheduler.After(t.config.ScanDelay, func() {
		t.logger.Printf("SimulatedTransport: found %v", device)
		found(device)
	})
}

func (t *SimulatedTransport) Connect(device gait.Device, connected func(Link), failed func(error)) sched.Cancel {
	t.logger.Printf("SimulatedTransport: connecting to %s", device.Name)
	return t.scheduler.After(t.config.ConnectDelay, func() {
		link := &SimulatedLink{
			logger:    t.logger,
			scheduler: t.scheduler,
			device:    device,
			source:    telemetry.NewSimulatedSource(t.logger, t.scheduler, t.config.Source),
			lost:      events.NewCallbackEvent[error](false),
		}
		t.mu.Lock()
		t.link = link
		t.mu.Unlock()
		t.logger.Printf("SimulatedTransport: connected to %s", device.Name)
		connected(link)
	})
}

// Link returns the most recently established link, or nil
func (t *SimulatedTransport) Link() *SimulatedLink {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.link
}

// SimulatedLink is the Link handed out by SimulatedTransport
type SimulatedLink struct {
	logger    *log.Logger
	scheduler sched.Scheduler
	device    gait.Device
	source    *telemetry.SimulatedSource
	lost      *events.CallbackEvent[error]

	mu     sync.Mutex
	closed bool
}

var _ Link = (*SimulatedLink)(nil)

func (l *SimulatedLink) Source() telemetry.Source {
	return l.source
}

// Simulator exposes the concrete source, e.g. to pause the stream
func (l *SimulatedLink) Simulator() *telemetry.SimulatedSource {
	return l.source
}

func (l *SimulatedLink) OnLost(callback func(cause error)) func() {
	return l.lost.Listen(callback)
}

// Drop simulates the radio link going away. OnLost listeners run on the
// dispatch context.
func (l *SimulatedLink) Drop(cause error) {
	l.scheduler.Post(func() {
		if l.IsClosed() {
			return
		}
		l.logger.Printf("SimulatedLink: %s dropped: %v", l.device.ID, cause)
		l.lost.Notify(cause)
	})
}

func (l *SimulatedLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		l.logger.Printf("SimulatedLink: %s closed", l.device.ID)
	}
	return nil
}

// IsClosed reports whether Close has been called
func (l *SimulatedLink) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
