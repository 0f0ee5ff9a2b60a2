package bt

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = log.New(io.Discard, "", 0)

func TestPreferredDevice_RoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "device.json")

	p := NewPreferredDevice(testLogger, path)
	assert.Equal(t, "", p.Address())

	at := time.Date(2026, 5, 2, 6, 30, 0, 0, time.UTC)
	p.Remember("E4:5F:01:AA:BB:CC", DefaultDeviceName, at)
	assert.Equal(t, "E4:5F:01:AA:BB:CC", p.Address())

	reloaded := NewPreferredDevice(testLogger, path)
	assert.Equal(t, "E4:5F:01:AA:BB:CC", reloaded.Address())
	assert.Equal(t, at, reloaded.data.LastConnected)
}

func TestPreferredDevice_CorruptFileIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	p := NewPreferredDevice(testLogger, path)
	assert.Equal(t, "", p.Address())
}

func TestDefaultPreferredDevicePath(t *testing.T) {
	assert.Equal(t, "device.json", filepath.Base(DefaultPreferredDevicePath()))
	assert.Equal(t, ".impact-insoles", filepath.Base(filepath.Dir(DefaultPreferredDevicePath())))
}
