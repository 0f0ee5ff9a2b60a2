package cadence

import (
	"math"
	"time"
)

// DefaultWindow is how far back step events count towards cadence
const DefaultWindow = 10 * time.Second

// Estimator turns step-event timestamps into steps per minute, using the mean
// interval between the steps inside a trailing window. No smoothing is applied.
type Estimator struct {
	windowMs int64
	stamps   []int64
	bpm      int
	valid    bool
}

// NewEstimator creates an estimator; a non-positive window means DefaultWindow
func NewEstimator(window time.Duration) *Estimator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Estimator{windowMs: window.Milliseconds()}
}

// Observe records a step event at ts and returns the updated cadence.
// ok is false until two steps have been seen.
func (e *Estimator) Observe(ts time.Time) (bpm int, ok bool) {
	now := ts.UnixMilli()
	e.stamps = append(e.stamps, now)

	kept := e.stamps[:0]
	for _, t := range e.stamps {
		if now-t < e.windowMs {
			kept = append(kept, t)
		}
	}
	e.stamps = kept

	if len(e.stamps) >= 2 {
		// mean of consecutive deltas is the span over the count of intervals
		span := e.stamps[len(e.stamps)-1] - e.stamps[0]
		avgMs := float64(span) / float64(len(e.stamps)-1)
		if avgMs > 0 {
			e.bpm = int(math.Round(60000 / avgMs))
			e.valid = true
		}
	}
	return e.bpm, e.valid
}

// Cadence returns the last computed cadence
func (e *Estimator) Cadence() (bpm int, ok bool) {
	return e.bpm, e.valid
}

// Reset forgets all steps and the last cadence
func (e *Estimator) Reset() {
	e.stamps = e.stamps[:0]
	e.bpm = 0
	e.valid = false
}
