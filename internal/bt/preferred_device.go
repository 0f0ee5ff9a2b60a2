package bt

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type preferredDeviceData struct {
	Address       string    `json:"address"`
	Name          string    `json:"name"`
	LastConnected time.Time `json:"last_connected"`
}

// PreferredDevice remembers the last insole the app connected to, so the next
// scan can pick it when several are in range
type PreferredDevice struct {
	filePath string
	logger   *log.Logger

	mu   sync.Mutex
	data preferredDeviceData
}

// DefaultPreferredDevicePath is ~/.impact-insoles/device.json
func DefaultPreferredDevicePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".impact-insoles", "device.json")
}

// NewPreferredDevice loads filePath; an empty path means DefaultPreferredDevicePath
func NewPreferredDevice(logger *log.Logger, filePath string) *PreferredDevice {
	if logger == nil {
		panic("PreferredDevice: logger cannot be nil")
	}
	if filePath == "" {
		filePath = DefaultPreferredDevicePath()
	}
	p := &PreferredDevice{
		filePath: filePath,
		logger:   logger,
	}
	p.load()
	return p
}

// Address returns the remembered address or ""
func (p *PreferredDevice) Address() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.Address
}

// Remember stores the device and writes the file
func (p *PreferredDevice) Remember(address, name string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Printf("PreferredDevice: remember %s (%s)", address, name)
	p.data = preferredDeviceData{Address: address, Name: name, LastConnected: at}
	p.save()
}

func (p *PreferredDevice) load() {
	raw, err := os.ReadFile(p.filePath)
	if err != nil {
		p.logger.Printf("PreferredDevice: load %s (no existing file)", p.filePath)
		return
	}
	if err := json.Unmarshal(raw, &p.data); err != nil {
		p.logger.Printf("PreferredDevice: load %s failed to parse: %v", p.filePath, err)
		p.data = preferredDeviceData{}
		return
	}
	p.logger.Printf("PreferredDevice: load %s -> %q", p.filePath, p.data.Address)
}

func (p *PreferredDevice) save() {
	if err := os.MkdirAll(filepath.Dir(p.filePath), 0755); err != nil {
		p.logger.Printf("PreferredDevice: save mkdir failed: %v", err)
		return
	}
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		p.logger.Printf("PreferredDevice: save marshal failed: %v", err)
		return
	}
	if err := os.WriteFile(p.filePath, raw, 0644); err != nil {
		p.logger.Printf("PreferredDevice: save %s failed: %v", p.filePath, err)
	}
}
