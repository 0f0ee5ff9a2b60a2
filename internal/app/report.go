package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/insight"
	"github.com/impact-insoles/insole-app/internal/recording"
)

// ErrNoResults is returned when a report is requested before a session finished
var ErrNoResults = errors.New("session has no results")

// ChannelPeak is the peak of one sensor
type ChannelPeak struct {
	Channel string `json:"channel" yaml:"channel"`
	Peak    uint8  `json:"peak" yaml:"peak"`
}

// Report summarises a finished session
type Report struct {
	SessionID       string          `json:"sessionId" yaml:"session_id"`
	Device          string          `json:"device,omitempty" yaml:"device,omitempty"`
	StartedAt       time.Time       `json:"startedAt" yaml:"started_at"`
	DurationSeconds int             `json:"durationSeconds" yaml:"duration_seconds"`
	Steps           int             `json:"steps" yaml:"steps"`
	CadenceBpm      *int            `json:"cadenceBpm" yaml:"cadence_bpm"`
	EndReason       string          `json:"endReason" yaml:"end_reason"`
	Error           string          `json:"error,omitempty" yaml:"error,omitempty"`
	Peaks           []ChannelPeak   `json:"peaks" yaml:"peaks"`
	Zones           gait.ZoneMaxima `json:"zones" yaml:"zones"`
	Insight         string          `json:"insight" yaml:"insight"`
	InsightText     string          `json:"insightText" yaml:"insight_text"`
}

// NewReport builds a report from a snapshot whose session is in Results
func NewReport(s Snapshot) (Report, error) {
	session := s.Session
	if session.Phase != recording.Results {
		return Report{}, fmt.Errorf("report in phase %s: %w", session.Phase, ErrNoResults)
	}
	in := insight.Classify(session.Peak)
	if s.Insight != nil {
		in = *s.Insight
	}

	r := Report{
		SessionID:       session.ID,
		StartedAt:       session.StartedAt,
		DurationSeconds: session.ElapsedSeconds,
		Steps:           session.StepCount,
		CadenceBpm:      session.CadenceBpm,
		EndReason:       session.EndReason.String(),
		Error:           session.ErrText,
		Peaks:           make([]ChannelPeak, 0, gait.NumChannels),
		Zones:           in.Zones,
		Insight:         in.Label.String(),
		InsightText:     in.Text,
	}
	if d := s.Connection.Device; d != nil {
		r.Device = d.String()
	}
	for i, v := range session.Peak {
		r.Peaks = append(r.Peaks, ChannelPeak{Channel: gait.Channel(i).String(), Peak: v})
	}
	return r, nil
}

// Write renders the report as "yaml" or "json"
func (r Report) Write(w io.Writer, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
