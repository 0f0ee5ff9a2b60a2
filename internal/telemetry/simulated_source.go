package telemetry

import (
	"log"
	"math/rand"
	"time"

	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/sched"
)

// DefaultTickInterval is the simulator's frame period (10 Hz)
const DefaultTickInterval = 100 * time.Millisecond

const (
	gaitCycleTicks = 20
	stepEveryTicks = 6
)

// baseline pressure per gait phase bucket
var (
	heelStrikeBaseline = gait.Pressure{210, 220, 80, 70, 30, 25, 10, 10}
	midstanceBaseline  = gait.Pressure{120, 130, 180, 190, 140, 150, 60, 55}
	toeOffBaseline     = gait.Pressure{20, 15, 60, 55, 200, 210, 230, 235}
	flightBaseline     = gait.Pressure{5, 5, 5, 5, 5, 5, 5, 5}
)

// NoiseFunc returns the perturbation added to one channel value
type NoiseFunc func() int

// UniformNoise returns integer noise in [-10, +9] drawn from r
func UniformNoise(r *rand.Rand) NoiseFunc {
	return func() int { return r.Intn(20) - 10 }
}

// GaitPhase returns the position of tick within the 20-tick stride, in [0,1)
func GaitPhase(tick int) float64 {
	return float64(tick%gaitCycleTicks) / gaitCycleTicks
}

// Baseline returns the noiseless pressure vector for a tick
func Baseline(tick int) gait.Pressure {
	phase := GaitPhase(tick)
	switch {
	case phase < 0.30:
		return heelStrikeBaseline
	case phase < 0.60:
		return midstanceBaseline
	case phase < 0.85:
		return toeOffBaseline
	default:
		return flightBaseline
	}
}

// IsStepTick reports whether a tick carries a step event.
// The step marker runs on its own period, independent of the gait phase.
func IsStepTick(tick int) bool {
	return tick%stepEveryTicks == 0
}

// GaitPressure returns the baseline for tick perturbed by noise and clamped to [0,255]
func GaitPressure(tick int, noise NoiseFunc) gait.Pressure {
	p := Baseline(tick)
	if noise == nil {
		return p
	}
	for i, v := range p {
		p[i] = uint8(min(255, max(0, int(v)+noise())))
	}
	return p
}

// SimulatedSourceConfig holds configuration for the gait simulator
type SimulatedSourceConfig struct {
	TickInterval time.Duration // defaults to DefaultTickInterval
	Noise        NoiseFunc     // nil disables noise
}

// SimulatedSource is a Source producing a synthetic running gait.
// The stream starts when the first handler subscribes and stops when the last
// one leaves; each start restarts the tick counter.
type SimulatedSource struct {
	logger    *log.Logger
	scheduler sched.Scheduler
	interval  time.Duration
	noise     NoiseFunc
	out       *Fanout

	tick       int
	stopTicker sched.Cancel
	paused     bool
}

var _ Source = (*SimulatedSource)(nil)

// NewSimulatedSource creates a simulator driven by scheduler
func NewSimulatedSource(logger *log.Logger, scheduler sched.Scheduler, config SimulatedSourceConfig) *SimulatedSource {
	if logger == nil {
		panic("SimulatedSource: logger cannot be nil")
	}
	if scheduler == nil {
		panic("SimulatedSource: scheduler cannot be nil")
	}
	interval := config.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	s := &SimulatedSource{
		logger:    logger,
		scheduler: scheduler,
		interval:  interval,
		noise:     config.Noise,
	}
	s.out = NewFanout(s.start, s.stop)
	return s
}

// Subscribe must be called on the scheduler's dispatch context
func (s *SimulatedSource) Subscribe(onFrame FrameHandler) Unsubscribe {
	return s.out.Subscribe(onFrame)
}

func (s *SimulatedSource) start() {
	s.tick = 0
	s.stopTicker = s.scheduler.Every(s.interval, s.emit)
	s.logger.Printf("SimulatedSource: stream started (%v per frame)", s.interval)
}

func (s *SimulatedSource) stop() {
	if s.stopTicker != nil {
		s.stopTicker()
		s.stopTicker = nil
	}
	s.logger.Printf("SimulatedSource: stream stopped after %d ticks", s.tick)
}

func (s *SimulatedSource) emit() {
	s.tick++
	if s.paused {
		return
	}
	s.out.Publish(gait.SensorFrame{
		Channels:    GaitPressure(s.tick, s.noise),
		IsStepEvent: IsStepTick(s.tick),
		Timestamp:   s.scheduler.Now(),
	})
}

// SetPaused holds back frames while keeping subscribers attached, the way a
// stalled radio link would. Must be called on the scheduler's dispatch context.
func (s *SimulatedSource) SetPaused(paused bool) {
	if s.paused != paused {
		s.logger.Printf("SimulatedSource: paused=%v", paused)
	}
	s.paused = paused
}

// Subscribers returns the number of attached handlers
func (s *SimulatedSource) Subscribers() int {
	return s.out.Subscribers()
}
