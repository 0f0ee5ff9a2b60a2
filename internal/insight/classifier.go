package insight

import (
	"github.com/impact-insoles/insole-app/internal/gait"
)

// Label is the qualitative foot-strike class of a finished session
type Label int

const (
	Balanced Label = iota
	HeelStrike
	Forefoot
	ArchAnomaly
)

var labelNames = map[Label]string{
	Balanced:    "balanced-default",
	HeelStrike:  "heel-strike-dominant",
	Forefoot:    "forefoot-dominant",
	ArchAnomaly: "arch-anomaly",
}

var labelTexts = map[Label]string{
	HeelStrike:  "Heavy heel strike detected. A more midfoot landing can reduce joint stress and improve running economy.",
	Forefoot:    "Forefoot dominant pattern. This is efficient for speed, but watch for calf fatigue on longer efforts.",
	ArchAnomaly: "Unusual arch loading detected. Check that your insoles are seated correctly in your shoes.",
	Balanced:    "Balanced foot strike across all zones. Your form looks solid, keep it up!",
}

func (l Label) String() string {
	if s, ok := labelNames[l]; ok {
		return s
	}
	return "unknown"
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Insight is a label plus the message shown to the runner
type Insight struct {
	Label Label           `json:"label" yaml:"label"`
	Text  string          `json:"text" yaml:"text"`
	Zones gait.ZoneMaxima `json:"zones" yaml:"zones"`
}

// Classify maps a peak vector to an insight. Rules are checked in order and the
// first match wins; ties fall through to Balanced.
func Classify(peak gait.Pressure) Insight {
	z := peak.ZoneMaxima()

	label := Balanced
	switch {
	case z.Heel > z.Ball && z.Heel > z.Toe:
		label = HeelStrike
	case z.Toe > z.Heel && z.Ball > z.Heel:
		label = Forefoot
	case z.Arch > z.Heel && z.Arch > z.Ball:
		label = ArchAnomaly
	}

	return Insight{Label: label, Text: labelTexts[label], Zones: z}
}
