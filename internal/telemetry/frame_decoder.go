package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/impact-insoles/insole-app/internal/gait"
)

// ErrShortPayload is returned for a notification with fewer than one byte per channel
var ErrShortPayload = errors.New("payload shorter than one byte per channel")

// flag byte following the channel bytes, when the firmware sends one
const flagStepEvent = 0x01

// Heel loading thresholds used when the payload carries no step flag
const (
	DefaultStepHighThreshold = 150
	DefaultStepLowThreshold  = 60
)

// StepDetector marks a step on each rising edge of heel pressure through the
// high threshold. It re-arms once the heel drops below the low threshold.
type StepDetector struct {
	High  uint8
	Low   uint8
	armed bool
}

// NewStepDetector creates a detector with the default thresholds
func NewStepDetector() *StepDetector {
	return &StepDetector{High: DefaultStepHighThreshold, Low: DefaultStepLowThreshold, armed: true}
}

// Observe returns true when p starts a new heel strike
func (d *StepDetector) Observe(p gait.Pressure) bool {
	heel := p.Zone(gait.ZoneHeel)
	if d.armed && heel >= d.High {
		d.armed = false
		return true
	}
	if !d.armed && heel < d.Low {
		d.armed = true
	}
	return false
}

// DecodeFrame decodes one notification payload: one unsigned byte per channel,
// optionally followed by a flag byte whose bit 0 marks a step event. Without a
// flag byte, steps is consulted (if non-nil) to assign the step event.
func DecodeFrame(payload []byte, timestamp time.Time, steps *StepDetector) (gait.SensorFrame, error) {
	if len(payload) < gait.NumChannels {
		return gait.SensorFrame{}, fmt.Errorf("decode frame (%d bytes): %w", len(payload), ErrShortPayload)
	}

	frame := gait.SensorFrame{Timestamp: timestamp}
	copy(frame.Channels[:], payload[:gait.NumChannels])

	if len(payload) > gait.NumChannels {
		frame.IsStepEvent = payload[gait.NumChannels]&flagStepEvent != 0
	} else if steps != nil {
		frame.IsStepEvent = steps.Observe(frame.Channels)
	}
	return frame, nil
}
