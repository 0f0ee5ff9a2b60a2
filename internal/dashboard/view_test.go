package dashboard

import (
	"io"
	"log"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"

	"github.com/impact-insoles/insole-app/internal/app"
	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/events"
	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/insight"
	"github.com/impact-insoles/insole-app/internal/recording"
)

var testLogger = log.New(io.Discard, "", 0)

type fakeModel struct {
	snapshot app.Snapshot
	snaps    *events.ChannelEvent[app.Snapshot]
	logs     *events.ChannelEvent[string]
	close    *events.ChannelEvent[struct{}]
}

func newFakeModel(s app.Snapshot) *fakeModel {
	return &fakeModel{
		snapshot: s,
		snaps:    events.NewChannelEvent[app.Snapshot](false),
		logs:     events.NewChannelEvent[string](false),
		close:    events.NewChannelEvent[struct{}](false),
	}
}

func (m *fakeModel) GetSnapshot() app.Snapshot                          { return m.snapshot }
func (m *fakeModel) ListenToSnapshot(ch chan<- app.Snapshot) func()     { return m.snaps.Listen(ch) }
func (m *fakeModel) ListenToLog(ch chan<- string) func()                { return m.logs.Listen(ch) }
func (m *fakeModel) GetLogTail(n int) []string                          { return []string{"[bt] line"} }
func (m *fakeModel) ListenToCloseApplication(ch chan<- struct{}) func() { return m.close.Listen(ch) }

type recordingController struct {
	calls []string
}

func (c *recordingController) record(name string) error {
	c.calls = append(c.calls, name)
	return nil
}

func (c *recordingController) StartScan() error       { return c.record("scan") }
func (c *recordingController) Connect() error         { return c.record("connect") }
func (c *recordingController) Reset() error           { return c.record("reset") }
func (c *recordingController) ToggleRecording() error { return c.record("toggle") }
func (c *recordingController) NewRun() error          { return c.record("new-run") }
func (c *recordingController) Primary() error         { return c.record("primary") }
func (c *recordingController) OnEscapeKey()           { c.record("escape") }

func newTestView(t *testing.T, s app.Snapshot) (*View, *recordingController) {
	t.Helper()
	controller := &recordingController{}
	v := NewView(testLogger, tview.NewApplication(), newFakeModel(s), controller)
	t.Cleanup(v.Shutdown)
	return v, controller
}

func TestView_KeyBindings(t *testing.T) {
	v, controller := newTestView(t, app.Snapshot{})

	keys := []*tcell.EventKey{
		tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone),
		tcell.NewEventKey(tcell.KeyRune, 'C', tcell.ModNone),
		tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone),
		tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone),
		tcell.NewEventKey(tcell.KeyRune, 'n', tcell.ModNone),
		tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone),
		tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone),
	}
	for _, key := range keys {
		assert.Nil(t, v.handleKey(key), key.Name())
	}
	assert.Equal(t, []string{"scan", "connect", "reset", "toggle", "new-run", "primary", "escape"}, controller.calls)
}

func TestView_UnboundKeysPassThrough(t *testing.T) {
	v, controller := newTestView(t, app.Snapshot{})

	key := tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)
	assert.Same(t, key, v.handleKey(key))
	tab := tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone)
	assert.Same(t, tab, v.handleKey(tab))
	assert.Empty(t, controller.calls)
}

func TestView_RendersSnapshot(t *testing.T) {
	cadence := 112
	device := gait.Device{ID: "mock-device-001", Name: "ImpactInsoles", SignalStrength: -62}
	in := insight.Classify(gait.Pressure{240, 235, 80, 70, 30, 25, 10, 10})
	v, _ := newTestView(t, app.Snapshot{
		Connection: connection.State{Phase: connection.Connected, Device: &device},
		Session: recording.Session{
			Phase:          recording.Results,
			ElapsedSeconds: 75,
			StepCount:      140,
			CadenceBpm:     &cadence,
			EndReason:      recording.EndStopped,
			Peak:           gait.Pressure{240, 235, 80, 70, 30, 25, 10, 10},
		},
		Insight: &in,
	})

	assert.Contains(t, v.connectionPanel.GetText(true), "Connected to ImpactInsoles")
	session := v.sessionPanel.GetText(true)
	assert.Contains(t, session, "Results (stopped)")
	assert.Contains(t, session, "01:15")
	assert.Contains(t, session, "140")
	assert.Contains(t, session, "112 spm")
	assert.Contains(t, v.livePanel.GetText(true), "Peak pressure")
	assert.Contains(t, v.insightPanel.GetText(true), "heel-strike-dominant")
}
