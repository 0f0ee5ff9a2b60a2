package insight

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-insoles/insole-app/internal/gait"
)

func TestClassify_Examples(t *testing.T) {
	cases := []struct {
		name string
		peak gait.Pressure
		want Label
	}{
		{"heel strike", gait.Pressure{240, 235, 80, 70, 30, 25, 10, 10}, HeelStrike},
		{"forefoot", gait.Pressure{20, 15, 60, 55, 200, 210, 230, 235}, Forefoot},
		{"arch", gait.Pressure{50, 40, 220, 215, 60, 55, 30, 20}, ArchAnomaly},
		{"flat", gait.Pressure{100, 100, 100, 100, 100, 100, 100, 100}, Balanced},
		{"zero", gait.Pressure{}, Balanced},
		// heel ties ball, toe below heel: rule 1 fails, rule 2 fails, arch below
		{"heel ball tie", gait.Pressure{200, 0, 50, 0, 200, 0, 10, 0}, Balanced},
		// heel beats ball and toe even though arch is highest
		{"heel over arch", gait.Pressure{150, 0, 250, 0, 100, 0, 100, 0}, HeelStrike},
		// toe beats heel but ball does not
		{"toe only", gait.Pressure{100, 0, 0, 0, 90, 0, 200, 0}, Balanced},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Classify(c.peak)
			assert.Equal(t, c.want, got.Label)
			assert.Equal(t, labelTexts[c.want], got.Text)
		})
	}
}

func TestClassify_NoiselessSimulatedPeaksAreBalanced(t *testing.T) {
	// peaks of a noiseless simulated run: every phase baseline merged
	var peak gait.Pressure
	peak.MergeMax(gait.Pressure{210, 220, 80, 70, 30, 25, 10, 10})
	peak.MergeMax(gait.Pressure{120, 130, 180, 190, 140, 150, 60, 55})
	peak.MergeMax(gait.Pressure{20, 15, 60, 55, 200, 210, 230, 235})

	// heel 220 beats ball 210 but not toe 235, so no rule fires
	got := Classify(peak)
	assert.Equal(t, Balanced, got.Label)
	assert.Equal(t, gait.ZoneMaxima{Heel: 220, Arch: 190, Ball: 210, Toe: 235}, got.Zones)
}

func TestClassify_Deterministic(t *testing.T) {
	peak := gait.Pressure{12, 200, 31, 7, 199, 3, 150, 88}
	first := Classify(peak)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(peak))
	}
}

func TestInsight_JSONLabel(t *testing.T) {
	raw, err := json.Marshal(Classify(gait.Pressure{240, 235, 80, 70, 30, 25, 10, 10}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"label":"heel-strike-dominant"`)
}
