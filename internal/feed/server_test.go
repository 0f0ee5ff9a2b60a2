package feed

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-insoles/insole-app/internal/app"
	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/gait"
)

var testLogger = log.New(io.Discard, "", 0)

type wireSnapshot struct {
	Connection struct {
		Phase  string       `json:"phase"`
		Device *gait.Device `json:"device"`
	} `json:"connection"`
	Session struct {
		Phase string `json:"phase"`
	} `json:"session"`
}

func startServer(t *testing.T, throttle time.Duration) (*app.Model, string) {
	t.Helper()
	model := app.NewModel(testLogger, nil)
	s := NewServer(testLogger, model, throttle)
	addr, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
		model.Shutdown()
	})
	return model, addr
}

func TestServer_State(t *testing.T) {
	model, addr := startServer(t, 0)
	device := connection.DefaultSimulatedDevice
	model.SetConnection(connection.State{Phase: connection.Found, Device: &device})

	resp, err := http.Get("http://" + addr + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got wireSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "found", got.Connection.Phase)
	require.NotNil(t, got.Connection.Device)
	assert.Equal(t, "mock-device-001", got.Connection.Device.ID)
	assert.Equal(t, "ready", got.Session.Phase)
}

func TestServer_StateRejectsPost(t *testing.T) {
	_, addr := startServer(t, 0)
	resp, err := http.Post("http://"+addr+"/api/state", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_WebsocketPushesChanges(t *testing.T) {
	model, addr := startServer(t, 10*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first wireSnapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "idle", first.Connection.Phase)

	model.SetConnection(connection.State{Phase: connection.Scanning})
	model.SetConnection(connection.State{Phase: connection.ScanFailed, Err: connection.ErrScanTimeout, ErrText: connection.ErrScanTimeout.Error()})

	// coalesced within the throttle window, so the last state wins eventually
	for {
		var next wireSnapshot
		require.NoError(t, conn.ReadJSON(&next))
		if next.Connection.Phase == "scan-failed" {
			break
		}
	}
}
