package dashboard

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/insight"
	"github.com/impact-insoles/insole-app/internal/recording"
)

const barWidth = 20

// heat scale from cold to hot, keyed by the upper bound of the normalized value
var heatScale = []struct {
	below float64
	color string
}{
	{0.10, "#0D1020"},
	{0.30, "#1A3A6E"},
	{0.50, "#0066CC"},
	{0.68, "#00AA88"},
	{0.84, "#FFB020"},
}

const heatMax = "#FF3B30"

func pressureColor(v uint8) string {
	n := float64(v) / 255
	for _, h := range heatScale {
		if n < h.below {
			return h.color
		}
	}
	return heatMax
}

func pressureBar(v uint8) string {
	filled := int(v) * barWidth / 255
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func formatElapsed(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func formatCadence(bpm *int) string {
	if bpm == nil {
		return "--"
	}
	return fmt.Sprintf("%d", *bpm)
}

func formatConnection(state connection.State) string {
	var text string
	switch state.Phase {
	case connection.Idle:
		text = "\n  [gray]●[white] Not connected\n\n  Press [yellow]S[white] to scan for insoles."
	case connection.Scanning:
		text = "\n  [yellow]●[white] Scanning...\n"
	case connection.Found:
		text = fmt.Sprintf("\n  [yellow]●[white] Found %s\n\n  Press [yellow]C[white] to connect.", tview.Escape(state.Device.String()))
	case connection.Connecting:
		text = fmt.Sprintf("\n  [yellow]●[white] Connecting to %s...\n", tview.Escape(state.Device.Name))
	case connection.Connected:
		text = fmt.Sprintf("\n  [green]●[white] Connected to %s\n  [gray]%s  RSSI %d dBm[white]", tview.Escape(state.Device.Name), state.Device.ID, state.Device.SignalStrength)
	case connection.ScanFailed, connection.ConnectionFailed:
		text = fmt.Sprintf("\n  [red]●[white] %s\n  [red]%s[white]\n\n  Press [yellow]R[white] to reset.", state.Phase, tview.Escape(state.ErrText))
	}
	return text
}

func formatPressure(title string, p gait.Pressure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n  [gray]%s[white]\n", title)
	for i, v := range p {
		fmt.Fprintf(&b, "  %-10s [%s]%s[white] %3d\n", gait.Channel(i), pressureColor(v), pressureBar(v), v)
	}
	return b.String()
}

func formatLive(session recording.Session) string {
	if session.Phase != recording.Recording {
		if session.Phase == recording.Results {
			return formatPressure("Peak pressure", session.Peak)
		}
		return "\n\n  [gray]Start a recording to see live pressure.[white]"
	}
	if session.Live == nil {
		return "\n\n  [gray]Waiting for data...[white]"
	}
	return formatPressure("Live pressure", session.Live.Channels)
}

func formatSession(session recording.Session) string {
	var b strings.Builder
	b.WriteString("\n")
	switch session.Phase {
	case recording.Ready:
		b.WriteString("  [gray]●[white] Ready\n\n")
	case recording.Recording:
		b.WriteString("  [red]●[white] Recording\n\n")
	case recording.Results:
		fmt.Fprintf(&b, "  [green]●[white] Results [gray](%s)[white]\n\n", session.EndReason)
	}
	cadence := session.LiveCadenceBpm
	if session.Phase == recording.Results {
		cadence = session.CadenceBpm
	}
	fmt.Fprintf(&b, "  Elapsed:  [yellow]%s[white]\n", formatElapsed(session.ElapsedSeconds))
	fmt.Fprintf(&b, "  Steps:    [yellow]%d[white]\n", session.StepCount)
	fmt.Fprintf(&b, "  Cadence:  [yellow]%s[white] spm\n", formatCadence(cadence))
	if session.ErrText != "" {
		fmt.Fprintf(&b, "\n  [red]%s[white]\n", tview.Escape(session.ErrText))
	}
	if session.ID != "" {
		fmt.Fprintf(&b, "\n  [gray]%s[white]\n", session.ID)
	}
	return b.String()
}

func formatInsight(in *insight.Insight) string {
	if in == nil {
		return "\n  [gray]Finish a recording to get a foot-strike insight.[white]"
	}
	z := in.Zones
	return fmt.Sprintf("\n  [yellow]%s[white]\n\n  %s\n\n  [gray]heel %d  arch %d  ball %d  toe %d[white]\n\n  Press [yellow]N[white] for a new run.",
		in.Label, in.Text, z.Heel, z.Arch, z.Ball, z.Toe)
}
