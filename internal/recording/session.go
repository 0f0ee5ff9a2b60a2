package recording

import (
	"errors"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/impact-insoles/insole-app/internal/gait"
)

var (
	// ErrInvalidTransition is returned when an operation is called from the wrong phase.
	// The session is left unchanged.
	ErrInvalidTransition = errors.New("invalid recording phase transition")
	// ErrStreamInterrupted marks a session that ended because frames stopped arriving
	ErrStreamInterrupted = errors.New("telemetry stream interrupted")
)

// Phase is the position of a session in its Ready → Recording → Results lifecycle
type Phase int

const (
	Ready Phase = iota
	Recording
	Results
)

var phaseNames = map[Phase]string{
	Ready:     "ready",
	Recording: "recording",
	Results:   "results",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// EndReason records why a session left Recording
type EndReason int

const (
	EndNone EndReason = iota
	EndStopped
	EndInterrupted
)

func (r EndReason) String() string {
	switch r {
	case EndStopped:
		return "stopped"
	case EndInterrupted:
		return "interrupted"
	default:
		return "none"
	}
}

func (r EndReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Session is a read-only snapshot of one recording lifecycle
type Session struct {
	ID             string            `json:"id,omitempty"`
	Phase          Phase             `json:"phase"`
	StartedAt      time.Time         `json:"startedAt"`
	ElapsedSeconds int               `json:"elapsedSeconds"`
	StepCount      int               `json:"stepCount"`
	Peak           gait.Pressure     `json:"peak"`
	CadenceBpm     *int              `json:"cadenceBpm"`
	LiveCadenceBpm *int              `json:"liveCadenceBpm"`
	Live           *gait.SensorFrame `json:"live,omitempty"`
	EndReason      EndReason         `json:"endReason"`
	Err            error             `json:"-"`
	ErrText        string            `json:"error,omitempty"`
}

func (s Session) clone() Session {
	c := s
	if s.CadenceBpm != nil {
		v := *s.CadenceBpm
		c.CadenceBpm = &v
	}
	if s.LiveCadenceBpm != nil {
		v := *s.LiveCadenceBpm
		c.LiveCadenceBpm = &v
	}
	if s.Live != nil {
		f := *s.Live
		c.Live = &f
	}
	return c
}

// Cadence returns the frozen cadence, if any
func (s Session) Cadence() (int, bool) {
	if s.CadenceBpm == nil {
		return 0, false
	}
	return *s.CadenceBpm, true
}

func newSessionID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
