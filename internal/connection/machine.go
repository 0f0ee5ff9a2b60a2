// Package connection owns the lifecycle of the single insole the app talks to:
// discovery, the connection handshake and the hand-off of its telemetry source.
package connection

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/impact-insoles/insole-app/internal/events"
	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/sched"
	"github.com/impact-insoles/insole-app/internal/telemetry"
)

// MachineConfig bounds the asynchronous steps; zero disables a bound
type MachineConfig struct {
	ScanTimeout    time.Duration
	ConnectTimeout time.Duration
}

// Machine is the device connection state machine.
// All methods except State, Phase and Listen must run on the scheduler's
// dispatch context.
type Machine struct {
	logger    *log.Logger
	scheduler sched.Scheduler
	transport Transport
	config    MachineConfig

	mu    sync.RWMutex // guards state for State and Phase
	state State

	// attempt identifies the current scan or connect; callbacks carrying an
	// older attempt are dropped
	attempt       uint64
	cancelWork    sched.Cancel
	cancelTimeout sched.Cancel
	link          Link
	stopLost      func()

	changes *events.CallbackEvent[State]
}

// NewMachine creates a machine in Idle
func NewMachine(logger *log.Logger, scheduler sched.Scheduler, transport Transport, config MachineConfig) *Machine {
	if logger == nil {
		panic("Machine: logger cannot be nil")
	}
	if scheduler == nil {
		panic("Machine: scheduler cannot be nil")
	}
	if transport == nil {
		panic("Machine: transport cannot be nil")
	}
	m := &Machine{
		logger:    logger,
		scheduler: scheduler,
		transport: transport,
		config:    config,
		state:     State{Phase: Idle},
		changes:   events.NewCallbackEvent[State](true),
	}
	m.changes.Notify(m.State())
	return m
}

// State returns a copy of the current state. Safe from any goroutine.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Phase returns the current phase. Safe from any goroutine.
func (m *Machine) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Phase
}

// Listen registers a callback for every state change, starting with the
// current state. Returns a deregistration function.
func (m *Machine) Listen(callback func(State)) func() {
	return m.changes.Listen(callback)
}

func (m *Machine) set(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.logger.Printf("Machine: %v", s)
	m.changes.Notify(s.clone())
}

// StartScan begins device discovery. Only valid in Idle.
func (m *Machine) StartScan() error {
	if phase := m.Phase(); phase != Idle {
		return fmt.Errorf("start scan in state %s: %w", phase, ErrInvalidTransition)
	}
	attempt := m.nextAttempt()
	m.set(newState(Scanning, nil, nil))

	m.armTimeout(m.config.ScanTimeout, func() {
		m.onScanFailed(attempt, ErrScanTimeout)
	})
	m.cancelWork = m.transport.Discover(
		func(d gait.Device) { m.onFound(attempt, d) },
		func(err error) { m.onScanFailed(attempt, err) },
	)
	return nil
}

// Connect begins the handshake with the found device. Only valid in Found;
// anywhere else the state is left unchanged.
func (m *Machine) Connect() error {
	current := m.State()
	if current.Phase != Found || current.Device == nil {
		return fmt.Errorf("connect in state %s: %w", current.Phase, ErrInvalidTransition)
	}
	device := *current.Device
	attempt := m.nextAttempt()
	m.set(newState(Connecting, &device, nil))

	m.armTimeout(m.config.ConnectTimeout, func() {
		m.onConnectFailed(attempt, device, ErrConnectTimeout)
	})
	m.cancelWork = m.transport.Connect(device,
		func(l Link) { m.onConnected(attempt, device, l) },
		func(err error) { m.onConnectFailed(attempt, device, fmt.Errorf("connect to %s: %w", device.ID, err)) },
	)
	return nil
}

// Reset abandons whatever is in progress, closes an open link and returns to
// Idle. Valid from every phase except Idle.
func (m *Machine) Reset() error {
	if phase := m.Phase(); phase == Idle {
		return fmt.Errorf("reset in state %s: %w", phase, ErrInvalidTransition)
	}
	m.teardown()
	m.set(newState(Idle, nil, nil))
	return nil
}

// Close releases everything the machine holds, for process shutdown
func (m *Machine) Close() {
	m.teardown()
	if m.Phase() != Idle {
		m.set(newState(Idle, nil, nil))
	}
}

// Source returns the telemetry source of the connected insole
func (m *Machine) Source() (telemetry.Source, bool) {
	if m.Phase() != Connected || m.link == nil {
		return nil, false
	}
	return m.link.Source(), true
}

func (m *Machine) onFound(attempt uint64, device gait.Device) {
	if !m.current(attempt, Scanning) {
		return
	}
	m.clearWork()
	m.set(newState(Found, &device, nil))
}

func (m *Machine) onScanFailed(attempt uint64, err error) {
	if !m.current(attempt, Scanning) {
		return
	}
	m.clearWork()
	m.set(newState(ScanFailed, nil, err))
}

func (m *Machine) onConnected(attempt uint64, device gait.Device, link Link) {
	if !m.current(attempt, Connecting) {
		m.logger.Printf("Machine: closing stale link to %s", device.ID)
		if err := link.Close(); err != nil {
			m.logger.Printf("Machine: error closing stale link: %v", err)
		}
		return
	}
	m.clearWork()
	m.link = link
	m.stopLost = link.OnLost(func(cause error) { m.onLost(attempt, cause) })
	m.set(newState(Connected, &device, nil))
}

func (m *Machine) onConnectFailed(attempt uint64, device gait.Device, err error) {
	if !m.current(attempt, Connecting) {
		return
	}
	m.clearWork()
	m.set(newState(ConnectionFailed, &device, err))
}

func (m *Machine) onLost(attempt uint64, cause error) {
	if !m.current(attempt, Connected) {
		return
	}
	device := m.State().Device
	m.releaseLink()
	err := ErrConnectionLost
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrConnectionLost, cause)
	}
	m.set(newState(ConnectionFailed, device, err))
}

func (m *Machine) current(attempt uint64, phase Phase) bool {
	return attempt == m.attempt && m.Phase() == phase
}

func (m *Machine) nextAttempt() uint64 {
	m.attempt++
	return m.attempt
}

func (m *Machine) armTimeout(d time.Duration, onTimeout func()) {
	if d <= 0 {
		return
	}
	m.cancelTimeout = m.scheduler.After(d, onTimeout)
}

// clearWork cancels the pending transport work and its timeout
func (m *Machine) clearWork() {
	if m.cancelWork != nil {
		m.cancelWork()
		m.cancelWork = nil
	}
	if m.cancelTimeout != nil {
		m.cancelTimeout()
		m.cancelTimeout = nil
	}
}

func (m *Machine) releaseLink() {
	if m.stopLost != nil {
		m.stopLost()
		m.stopLost = nil
	}
	if m.link != nil {
		if err := m.link.Close(); err != nil {
			m.logger.Printf("Machine: error closing link: %v", err)
		}
		m.link = nil
	}
}

func (m *Machine) teardown() {
	m.nextAttempt()
	m.clearWork()
	m.releaseLink()
}
