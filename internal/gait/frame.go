package gait

import (
	"fmt"
	"time"
)

// NumChannels is the number of pressure sensors on one insole
const NumChannels = 8

// Channel is a fixed anatomical sensor position on the insole
type Channel int

const (
	HeelLeft Channel = iota
	HeelRight
	ArchLeft
	ArchRight
	BallLeft
	BallRight
	ToeLeft
	ToeRight
)

var channelNames = [NumChannels]string{
	"heel-left", "heel-right",
	"arch-left", "arch-right",
	"ball-left", "ball-right",
	"toe-left", "toe-right",
}

func (c Channel) String() string {
	if c < 0 || int(c) >= NumChannels {
		return "unknown"
	}
	return channelNames[c]
}

// Zone is one of the four anatomical regions, each backed by a left/right channel pair
type Zone int

const (
	ZoneHeel Zone = iota
	ZoneArch
	ZoneBall
	ZoneToe
)

// AllZones lists the zones from heel to toe
var AllZones = []Zone{ZoneHeel, ZoneArch, ZoneBall, ZoneToe}

func (z Zone) String() string {
	switch z {
	case ZoneHeel:
		return "heel"
	case ZoneArch:
		return "arch"
	case ZoneBall:
		return "ball"
	case ZoneToe:
		return "toe"
	default:
		return "unknown"
	}
}

// Channels returns the left and right channels backing the zone
func (z Zone) Channels() (left, right Channel) {
	left = Channel(int(z) * 2)
	return left, left + 1
}

// Pressure holds one value per channel, each in [0,255]
type Pressure [NumChannels]uint8

// Zone returns the max of the zone's left/right pair
func (p Pressure) Zone(z Zone) uint8 {
	l, r := z.Channels()
	return max(p[l], p[r])
}

// ZoneMaxima returns heel, arch, ball and toe maxima in that order
func (p Pressure) ZoneMaxima() ZoneMaxima {
	return ZoneMaxima{
		Heel: p.Zone(ZoneHeel),
		Arch: p.Zone(ZoneArch),
		Ball: p.Zone(ZoneBall),
		Toe:  p.Zone(ZoneToe),
	}
}

// MergeMax raises each channel of p to at least the matching channel of o
func (p *Pressure) MergeMax(o Pressure) {
	for i := range p {
		p[i] = max(p[i], o[i])
	}
}

// ZoneMaxima holds the per-zone maximum of a pressure vector
type ZoneMaxima struct {
	Heel uint8 `json:"heel" yaml:"heel"`
	Arch uint8 `json:"arch" yaml:"arch"`
	Ball uint8 `json:"ball" yaml:"ball"`
	Toe  uint8 `json:"toe" yaml:"toe"`
}

// SensorFrame is one timestamped sample of all channels
type SensorFrame struct {
	Channels    Pressure  `json:"channels"`
	IsStepEvent bool      `json:"isStepEvent"`
	Timestamp   time.Time `json:"timestamp"`
}

// TimestampMs returns the frame time in unix milliseconds
func (f SensorFrame) TimestampMs() int64 {
	return f.Timestamp.UnixMilli()
}

// Device is an insole found during discovery. Immutable once created.
type Device struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SignalStrength int    `json:"signalStrength"` // dBm
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s) [RSSI: %d]", d.Name, d.ID, d.SignalStrength)
}
