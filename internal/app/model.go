package app

import (
	"context"
	"log"
	"sync"

	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/events"
	"github.com/impact-insoles/insole-app/internal/go_func_utils"
	"github.com/impact-insoles/insole-app/internal/insight"
	"github.com/impact-insoles/insole-app/internal/recording"
)

// Snapshot is everything a presentation layer needs to render
type Snapshot struct {
	Connection connection.State  `json:"connection"`
	Session    recording.Session `json:"session"`
	Insight    *insight.Insight  `json:"insight"` // set once the session has results
}

// Model holds the latest snapshot and the recent log lines and publishes changes
type Model struct {
	logger *log.Logger

	mu            sync.RWMutex
	snapshot      Snapshot
	snapshotEvent *events.ChannelEvent[Snapshot]

	logMu    sync.RWMutex
	logLines []string
	logEvent *events.ChannelEvent[string]

	closeApplicationEvent *events.ChannelEvent[struct{}]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const maxLogLines = 1000

// NewModel creates a model. uiLogChan may be nil when no log pane is shown.
func NewModel(logger *log.Logger, uiLogChan <-chan string) *Model {
	if logger == nil {
		panic("Model: logger cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		logger:                logger,
		snapshot:              Snapshot{Connection: connection.State{Phase: connection.Idle}, Session: recording.Session{Phase: recording.Ready}},
		snapshotEvent:         events.NewChannelEvent[Snapshot](true),
		logLines:              make([]string, 0, maxLogLines),
		logEvent:              events.NewChannelEvent[string](false),
		closeApplicationEvent: events.NewChannelEvent[struct{}](true),
		ctx:                   ctx,
		cancel:                cancel,
	}
	if uiLogChan != nil {
		m.wg.Add(1)
		go_func_utils.SafeGo(logger, "Model log reader", func() { m.readFromLogChannel(ctx, uiLogChan) })
	}
	return m
}

// Shutdown stops the log reader
func (m *Model) Shutdown() {
	m.logger.Println("Model: Shutting down")
	m.cancel()
	m.wg.Wait()
	m.logger.Println("Model: Shutdown complete")
}

// GetSnapshot returns the current snapshot
func (m *Model) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// ListenToSnapshot registers a channel to receive snapshot changes
// Returns a deregistration function that can be called to remove the listener
func (m *Model) ListenToSnapshot(ch chan<- Snapshot) func() {
	return m.snapshotEvent.Listen(ch)
}

// SetConnection records a connection state change
func (m *Model) SetConnection(state connection.State) {
	m.mu.Lock()
	m.snapshot.Connection = state
	snapshot := m.snapshot
	m.mu.Unlock()

	m.snapshotEvent.Notify(snapshot)
}

// SetSession records a session change; the insight is derived when the
// session reaches Results and dropped otherwise
func (m *Model) SetSession(session recording.Session) {
	var in *insight.Insight
	if session.Phase == recording.Results {
		classified := insight.Classify(session.Peak)
		in = &classified
	}

	m.mu.Lock()
	m.snapshot.Session = session
	m.snapshot.Insight = in
	snapshot := m.snapshot
	m.mu.Unlock()

	m.snapshotEvent.Notify(snapshot)
}

// ListenToLog registers a channel to receive log lines
func (m *Model) ListenToLog(ch chan<- string) func() {
	return m.logEvent.Listen(ch)
}

// ListenToCloseApplication registers a channel to receive close application signals
func (m *Model) ListenToCloseApplication(ch chan<- struct{}) func() {
	return m.closeApplicationEvent.Listen(ch)
}

// RequestCloseApplication signals that the application should close
func (m *Model) RequestCloseApplication() {
	m.closeApplicationEvent.Notify(struct{}{})
}

func (m *Model) readFromLogChannel(ctx context.Context, logChan <-chan string) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-logChan:
			if !ok {
				return
			}
			m.logMu.Lock()
			m.logLines = append(m.logLines, line)
			if len(m.logLines) > maxLogLines {
				m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
			}
			m.logMu.Unlock()

			m.logEvent.Notify(line)
		}
	}
}

// GetLogTail returns the last n log lines
func (m *Model) GetLogTail(n int) []string {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	if n <= 0 {
		return []string{}
	}
	if n > len(m.logLines) {
		n = len(m.logLines)
	}
	result := make([]string, n)
	copy(result, m.logLines[len(m.logLines)-n:])
	return result
}
