package dashboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/recording"
)

func TestPressureColor(t *testing.T) {
	assert.Equal(t, "#0D1020", pressureColor(0))
	assert.Equal(t, "#1A3A6E", pressureColor(26))
	assert.Equal(t, "#00AA88", pressureColor(128))
	assert.Equal(t, "#FFB020", pressureColor(200))
	assert.Equal(t, heatMax, pressureColor(255))
}

func TestPressureBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░░░░░░░░░░░", pressureBar(0))
	assert.Equal(t, "██████████░░░░░░░░░░", pressureBar(128))
	assert.Equal(t, "████████████████████", pressureBar(255))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00", formatElapsed(0))
	assert.Equal(t, "01:15", formatElapsed(75))
	assert.Equal(t, "61:01", formatElapsed(3661))
}

func TestFormatConnection_FailureIsEscaped(t *testing.T) {
	text := formatConnection(connection.State{Phase: connection.ScanFailed, ErrText: "no insole found [timeout]"})
	assert.Contains(t, text, "scan-failed")
	assert.Contains(t, text, "[timeout[]")
}

func TestFormatLive(t *testing.T) {
	assert.Contains(t, formatLive(recording.Session{Phase: recording.Ready}), "Start a recording")
	assert.Contains(t, formatLive(recording.Session{Phase: recording.Recording}), "Waiting for data")

	frame := gait.SensorFrame{Channels: gait.Pressure{255, 0, 0, 0, 0, 0, 0, 0}}
	live := formatLive(recording.Session{Phase: recording.Recording, Live: &frame})
	assert.Contains(t, live, "heel-left")
	assert.Contains(t, live, "[#FF3B30]████████████████████[white] 255")
}

func TestFormatSession_CadenceSource(t *testing.T) {
	live := 98
	s := recording.Session{Phase: recording.Recording, LiveCadenceBpm: &live}
	assert.Contains(t, formatSession(s), "98")

	s = recording.Session{Phase: recording.Results, LiveCadenceBpm: &live, Err: errors.New("x"), ErrText: "stream interrupted"}
	text := formatSession(s)
	assert.Contains(t, text, "[yellow]--[white] spm")
	assert.Contains(t, text, "stream interrupted")
}

func TestFormatInsight_None(t *testing.T) {
	assert.Contains(t, formatInsight(nil), "Finish a recording")
}
