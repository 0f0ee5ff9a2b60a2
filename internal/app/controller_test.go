package app

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/insight"
	"github.com/impact-insoles/insole-app/internal/recording"
	"github.com/impact-insoles/insole-app/internal/sched"
)

var testLogger = log.New(io.Discard, "", 0)

var epoch = time.Date(2026, 5, 2, 6, 30, 0, 0, time.UTC)

type fixture struct {
	scheduler  *sched.ManualScheduler
	transport  *connection.SimulatedTransport
	model      *Model
	controller *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := sched.NewManualScheduler(epoch)
	transport := connection.NewSimulatedTransport(testLogger, s, connection.SimulatedTransportConfig{})
	machine := connection.NewMachine(testLogger, s, transport, connection.MachineConfig{})
	aggregator := recording.NewAggregator(testLogger, s, recording.AggregatorConfig{StreamTimeout: 2 * time.Second})
	model := NewModel(testLogger, nil)
	t.Cleanup(model.Shutdown)
	return &fixture{
		scheduler:  s,
		transport:  transport,
		model:      model,
		controller: NewController(testLogger, s, model, machine, aggregator),
	}
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, f.controller.StartScan())
	f.scheduler.Advance(2 * time.Second)
	require.NoError(t, f.controller.Connect())
	f.scheduler.Advance(time.Second)
	require.Equal(t, connection.Connected, f.model.GetSnapshot().Connection.Phase)
}

func TestController_FullRun(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, connection.Idle, f.model.GetSnapshot().Connection.Phase)
	f.connect(t)

	require.NoError(t, f.controller.StartRecording())
	f.scheduler.Advance(2400 * time.Millisecond)
	assert.Equal(t, recording.Recording, f.model.GetSnapshot().Session.Phase)
	assert.Nil(t, f.model.GetSnapshot().Insight)

	require.NoError(t, f.controller.StopRecording())
	s := f.model.GetSnapshot()
	assert.Equal(t, recording.Results, s.Session.Phase)
	assert.Equal(t, 4, s.Session.StepCount)
	require.NotNil(t, s.Insight)
	assert.Equal(t, insight.Balanced, s.Insight.Label)

	require.NoError(t, f.controller.NewRun())
	s = f.model.GetSnapshot()
	assert.Equal(t, recording.Ready, s.Session.Phase)
	assert.Nil(t, s.Insight)
}

func TestController_RecordingNeedsConnection(t *testing.T) {
	f := newFixture(t)
	err := f.controller.StartRecording()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, recording.Ready, f.model.GetSnapshot().Session.Phase)
}

func TestController_LinkLossInterruptsRecording(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	require.NoError(t, f.controller.StartRecording())
	f.scheduler.Advance(time.Second)

	f.transport.Link().Drop(errors.New("out of range"))
	f.scheduler.RunPending()

	s := f.model.GetSnapshot()
	assert.Equal(t, connection.ConnectionFailed, s.Connection.Phase)
	assert.Equal(t, recording.Results, s.Session.Phase)
	assert.Equal(t, recording.EndInterrupted, s.Session.EndReason)
	assert.ErrorIs(t, s.Session.Err, recording.ErrStreamInterrupted)
	assert.ErrorIs(t, s.Session.Err, connection.ErrConnectionLost)
	assert.Equal(t, 0, f.transport.Link().Simulator().Subscribers())
}

func TestController_ResetDiscardsRecordingInProgress(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	require.NoError(t, f.controller.StartRecording())
	f.scheduler.Advance(time.Second)

	require.NoError(t, f.controller.Reset())
	s := f.model.GetSnapshot()
	assert.Equal(t, connection.Idle, s.Connection.Phase)
	assert.Equal(t, recording.Ready, s.Session.Phase)
	assert.Equal(t, 0, f.scheduler.Pending())
}

func TestController_ResetKeepsResults(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	require.NoError(t, f.controller.StartRecording())
	f.scheduler.Advance(time.Second)
	require.NoError(t, f.controller.StopRecording())

	require.NoError(t, f.controller.Reset())
	assert.Equal(t, recording.Results, f.model.GetSnapshot().Session.Phase)
}

func TestController_PrimaryWalksHappyPath(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.controller.Primary())
	assert.Equal(t, connection.Scanning, f.model.GetSnapshot().Connection.Phase)
	require.NoError(t, f.controller.Primary(), "nothing to do while scanning")

	f.scheduler.Advance(2 * time.Second)
	require.NoError(t, f.controller.Primary())
	f.scheduler.Advance(time.Second)

	require.NoError(t, f.controller.Primary())
	assert.Equal(t, recording.Recording, f.model.GetSnapshot().Session.Phase)
	f.scheduler.Advance(time.Second)
	require.NoError(t, f.controller.Primary())
	assert.Equal(t, recording.Results, f.model.GetSnapshot().Session.Phase)

	assert.ErrorIs(t, f.controller.Primary(), recording.ErrInvalidTransition)
}

func TestController_InvalidOperationsReturnErrors(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.controller.Connect(), connection.ErrInvalidTransition)
	assert.ErrorIs(t, f.controller.Reset(), connection.ErrInvalidTransition)
	assert.ErrorIs(t, f.controller.StopRecording(), recording.ErrInvalidTransition)
	assert.ErrorIs(t, f.controller.NewRun(), recording.ErrInvalidTransition)
}

func TestController_EscapeRequestsClose(t *testing.T) {
	f := newFixture(t)
	ch := make(chan struct{}, 1)
	unregister := f.model.ListenToCloseApplication(ch)
	defer unregister()

	f.controller.OnEscapeKey()
	select {
	case <-ch:
	default:
		t.Fatal("close not requested")
	}
}

func TestController_Shutdown(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	require.NoError(t, f.controller.StartRecording())

	f.controller.Shutdown()
	assert.Equal(t, 0, f.scheduler.Pending())
	assert.True(t, f.transport.Link().IsClosed())
}
