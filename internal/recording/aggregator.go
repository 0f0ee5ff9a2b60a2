package recording

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/impact-insoles/insole-app/internal/cadence"
	"github.com/impact-insoles/insole-app/internal/events"
	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/sched"
	"github.com/impact-insoles/insole-app/internal/telemetry"
)

// DefaultStreamTimeout is how long a recording waits for a frame before it is
// ended as interrupted
const DefaultStreamTimeout = 2 * time.Second

const elapsedTick = time.Second

// AggregatorConfig holds configuration for the Aggregator
type AggregatorConfig struct {
	CadenceWindow time.Duration // defaults to cadence.DefaultWindow
	StreamTimeout time.Duration // 0 disables the stream watchdog
}

// Aggregator owns the live recording session. All methods except Snapshot and
// Listen must run on the scheduler's dispatch context.
type Aggregator struct {
	logger        *log.Logger
	scheduler     sched.Scheduler
	streamTimeout time.Duration

	mu      sync.RWMutex // guards session for Snapshot
	session Session

	cadence      *cadence.Estimator
	unsubscribe  telemetry.Unsubscribe
	stopTicker   sched.Cancel
	stopWatchdog sched.Cancel

	changes *events.CallbackEvent[Session]
}

// NewAggregator creates an aggregator in the Ready phase
func NewAggregator(logger *log.Logger, scheduler sched.Scheduler, config AggregatorConfig) *Aggregator {
	if logger == nil {
		panic("Aggregator: logger cannot be nil")
	}
	if scheduler == nil {
		panic("Aggregator: scheduler cannot be nil")
	}
	a := &Aggregator{
		logger:        logger,
		scheduler:     scheduler,
		streamTimeout: config.StreamTimeout,
		session:       Session{Phase: Ready},
		cadence:       cadence.NewEstimator(config.CadenceWindow),
		changes:       events.NewCallbackEvent[Session](true),
	}
	a.publish()
	return a
}

// Snapshot returns a copy of the current session. Safe from any goroutine.
func (a *Aggregator) Snapshot() Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.clone()
}

// Listen registers a callback for every session change; it is called with the
// current session straight away. Returns a deregistration function.
func (a *Aggregator) Listen(callback func(Session)) func() {
	return a.changes.Listen(callback)
}

func (a *Aggregator) publish() {
	a.changes.Notify(a.Snapshot())
}

// Phase returns the current phase
func (a *Aggregator) Phase() Phase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.Phase
}

// Start begins a recording from source. Only valid in Ready.
func (a *Aggregator) Start(source telemetry.Source) error {
	if source == nil {
		return fmt.Errorf("start recording: no telemetry source")
	}
	if phase := a.Phase(); phase != Ready {
		return fmt.Errorf("start recording in phase %s: %w", phase, ErrInvalidTransition)
	}

	now := a.scheduler.Now()
	a.cadence.Reset()

	a.mu.Lock()
	a.session = Session{
		ID:        newSessionID(now),
		Phase:     Recording,
		StartedAt: now,
	}
	a.mu.Unlock()

	a.unsubscribe = source.Subscribe(a.OnFrame)
	a.stopTicker = a.scheduler.Every(elapsedTick, a.Tick)
	a.armWatchdog()

	a.logger.Printf("Aggregator: recording %s started", a.session.ID)
	a.publish()
	return nil
}

// OnFrame folds a frame into the session. Ignored outside Recording.
func (a *Aggregator) OnFrame(frame gait.SensorFrame) {
	a.mu.Lock()
	if a.session.Phase != Recording {
		a.mu.Unlock()
		return
	}
	a.session.Peak.MergeMax(frame.Channels)
	live := frame
	a.session.Live = &live
	if frame.IsStepEvent {
		a.session.StepCount++
		if bpm, ok := a.cadence.Observe(frame.Timestamp); ok {
			a.session.LiveCadenceBpm = &bpm
		}
	}
	a.mu.Unlock()

	a.armWatchdog()
	a.publish()
}

// Tick advances the elapsed clock by one second. Ignored outside Recording.
func (a *Aggregator) Tick() {
	a.mu.Lock()
	if a.session.Phase != Recording {
		a.mu.Unlock()
		return
	}
	a.session.ElapsedSeconds++
	a.mu.Unlock()

	a.publish()
}

// Stop ends the recording and freezes the session. Only valid in Recording.
// No frame delivered after Stop returns can change the session.
func (a *Aggregator) Stop() error {
	if phase := a.Phase(); phase != Recording {
		return fmt.Errorf("stop recording in phase %s: %w", phase, ErrInvalidTransition)
	}
	a.finish(EndStopped, nil)
	return nil
}

// Interrupt ends the recording because the stream failed. cause may be nil.
// Only valid in Recording.
func (a *Aggregator) Interrupt(cause error) error {
	if phase := a.Phase(); phase != Recording {
		return fmt.Errorf("interrupt recording in phase %s: %w", phase, ErrInvalidTransition)
	}
	err := ErrStreamInterrupted
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrStreamInterrupted, cause)
	}
	a.finish(EndInterrupted, err)
	return nil
}

func (a *Aggregator) finish(reason EndReason, err error) {
	a.detach()

	a.mu.Lock()
	a.session.Phase = Results
	a.session.EndReason = reason
	a.session.Err = err
	if err != nil {
		a.session.ErrText = err.Error()
	}
	if bpm, ok := a.cadence.Cadence(); ok {
		a.session.CadenceBpm = &bpm
	}
	id, steps, elapsed := a.session.ID, a.session.StepCount, a.session.ElapsedSeconds
	a.mu.Unlock()

	if err != nil {
		a.logger.Printf("Aggregator: recording %s interrupted after %ds, %d steps: %v", id, elapsed, steps, err)
	} else {
		a.logger.Printf("Aggregator: recording %s stopped after %ds, %d steps", id, elapsed, steps)
	}
	a.publish()
}

// NewRun discards the results and returns to Ready. Only valid in Results.
func (a *Aggregator) NewRun() error {
	if phase := a.Phase(); phase != Results {
		return fmt.Errorf("new run in phase %s: %w", phase, ErrInvalidTransition)
	}
	a.cadence.Reset()
	a.mu.Lock()
	a.session = Session{Phase: Ready}
	a.mu.Unlock()

	a.logger.Printf("Aggregator: ready for a new run")
	a.publish()
	return nil
}

// Close detaches from the source and clocks from any phase and discards the session
func (a *Aggregator) Close() {
	a.detach()
	a.cadence.Reset()
	a.mu.Lock()
	discarded := a.session.Phase != Ready
	a.session = Session{Phase: Ready}
	a.mu.Unlock()

	if discarded {
		a.logger.Printf("Aggregator: session discarded")
		a.publish()
	}
}

// detach cancels the subscription, the elapsed ticker and the watchdog together
func (a *Aggregator) detach() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	if a.stopTicker != nil {
		a.stopTicker()
		a.stopTicker = nil
	}
	if a.stopWatchdog != nil {
		a.stopWatchdog()
		a.stopWatchdog = nil
	}
}

func (a *Aggregator) armWatchdog() {
	if a.streamTimeout <= 0 {
		return
	}
	if a.stopWatchdog != nil {
		a.stopWatchdog()
	}
	a.stopWatchdog = a.scheduler.After(a.streamTimeout, func() {
		a.stopWatchdog = nil
		a.logger.Printf("Aggregator: no frame for %v", a.streamTimeout)
		_ = a.Interrupt(nil)
	})
}
