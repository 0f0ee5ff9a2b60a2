// Package bt talks to real insoles over Bluetooth Low Energy.
package bt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/go_func_utils"
	"github.com/impact-insoles/insole-app/internal/sched"
)

// ErrDisconnected is reported through Link.OnLost when the adapter sees the
// insole disconnect
var ErrDisconnected = errors.New("insole disconnected")

// DefaultSettleTime is how long a scan keeps listening for the preferred
// insole after another one has been seen
const DefaultSettleTime = 3 * time.Second

// TransportConfig holds configuration for the BLE transport
type TransportConfig struct {
	DeviceName         string
	ServiceUUID        string
	CharacteristicUUID string
	SettleTime         time.Duration
	Preferred          *PreferredDevice // optional
}

// Transport implements connection.Transport on top of a bluetooth adapter.
// Blocking adapter calls run on their own goroutines; results are posted to
// the scheduler.
type Transport struct {
	adapter   *bluetooth.Adapter
	logger    *log.Logger
	scheduler sched.Scheduler
	config    TransportConfig

	service        bluetooth.UUID
	characteristic bluetooth.UUID

	mu        sync.Mutex
	addresses map[string]bluetooth.Address // device ID → address, from scans
	links     map[string]*insoleLink       // device ID → open link
	wg        sync.WaitGroup
}

var _ connection.Transport = (*Transport)(nil)

// NewTransport validates the configured UUIDs and creates a transport
func NewTransport(adapter *bluetooth.Adapter, logger *log.Logger, scheduler sched.Scheduler, config TransportConfig) (*Transport, error) {
	if logger == nil {
		panic("Transport: logger cannot be nil")
	}
	if adapter == nil {
		panic("Transport: adapter cannot be nil")
	}
	if scheduler == nil {
		panic("Transport: scheduler cannot be nil")
	}
	if config.DeviceName == "" {
		config.DeviceName = DefaultDeviceName
	}
	if config.ServiceUUID == "" {
		config.ServiceUUID = DefaultServiceUUID
	}
	if config.CharacteristicUUID == "" {
		config.CharacteristicUUID = DefaultCharacteristicUUID
	}
	if config.SettleTime <= 0 {
		config.SettleTime = DefaultSettleTime
	}
	service, err := bluetooth.ParseUUID(config.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", config.ServiceUUID, err)
	}
	characteristic, err := bluetooth.ParseUUID(config.CharacteristicUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID %q: %w", config.CharacteristicUUID, err)
	}
	return &Transport{
		adapter:        adapter,
		logger:         logger,
		scheduler:      scheduler,
		config:         config,
		service:        service,
		characteristic: characteristic,
		addresses:      make(map[string]bluetooth.Address),
		links:          make(map[string]*insoleLink),
	}, nil
}

// Enable powers up the adapter and starts tracking disconnects
func (t *Transport) Enable() error {
	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		id := device.Address.String()
		if connected {
			t.logger.Printf("Transport: device connected: %s", id)
			return
		}
		t.logger.Printf("Transport: device disconnected: %s", id)
		t.mu.Lock()
		link := t.links[id]
		delete(t.links, id)
		t.mu.Unlock()
		if link != nil {
			link.lose(ErrDisconnected)
		}
	})
	return t.adapter.Enable()
}

func (t *Transport) Discover(found func(gait.Device), failed func(error)) sched.Cancel {
	filter := scanFilter{
		deviceName: t.config.DeviceName,
		service:    t.service,
	}
	if t.config.Preferred != nil {
		filter.preferred = t.config.Preferred.Address()
	}
	t.logger.Printf("Transport: starting scan for %q / %s (preferred %q)", filter.deviceName, t.config.ServiceUUID, filter.preferred)

	var cancelled atomic.Bool
	var mu sync.Mutex
	seen := &candidates{filter: filter}
	var settle *time.Timer

	stop := func() {
		if err := t.adapter.StopScan(); err != nil {
			t.logger.Printf("Transport: error stopping scan: %v", err)
		}
	}

	t.wg.Add(1)
	go_func_utils.SafeGo(t.logger, "bt scan", func() {
		defer t.wg.Done()
		defer t.logger.Printf("Transport: exiting scan loop")

		err := t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if cancelled.Load() {
				return
			}
			if !filter.matches(result.LocalName(), result.HasServiceUUID) {
				return
			}
			device := gait.Device{
				ID:             result.Address.String(),
				Name:           result.LocalName(),
				SignalStrength: int(result.RSSI),
			}
			if device.Name == "" {
				device.Name = t.config.DeviceName
			}
			t.mu.Lock()
			t.addresses[device.ID] = result.Address
			t.mu.Unlock()

			mu.Lock()
			defer mu.Unlock()
			if seen.add(device) {
				stop()
			} else if settle == nil {
				t.logger.Printf("Transport: saw %v, waiting %v for the preferred insole", device, t.config.SettleTime)
				settle = time.AfterFunc(t.config.SettleTime, stop)
			}
		})

		mu.Lock()
		if settle != nil {
			settle.Stop()
		}
		device, ok := seen.pick()
		mu.Unlock()

		t.scheduler.Post(func() {
			if cancelled.Load() {
				return
			}
			switch {
			case err != nil:
				failed(fmt.Errorf("scan: %w", err))
			case ok:
				t.logger.Printf("Transport: found %v", device)
				found(device)
			default:
				// stopped without a match; the machine's scan timeout reports it
				t.logger.Printf("Transport: scan ended without an insole")
			}
		})
	})

	return func() {
		if cancelled.CompareAndSwap(false, true) {
			stop()
		}
	}
}

func (t *Transport) Connect(device gait.Device, connected func(connection.Link), failed func(error)) sched.Cancel {
	t.mu.Lock()
	address, ok := t.addresses[device.ID]
	t.mu.Unlock()
	if !ok {
		t.scheduler.Post(func() { failed(fmt.Errorf("device %s was not seen in a scan", device.ID)) })
		return func() {}
	}

	var cancelled atomic.Bool
	t.wg.Add(1)
	go_func_utils.SafeGo(t.logger, "bt connect", func() {
		defer t.wg.Done()
		t.logger.Printf("Transport: connecting to %s", device.ID)

		link, err := t.open(device, address)
		t.scheduler.Post(func() {
			if cancelled.Load() {
				if link != nil {
					_ = link.Close()
				}
				return
			}
			if err != nil {
				failed(err)
				return
			}
			if t.config.Preferred != nil {
				t.config.Preferred.Remember(device.ID, device.Name, t.scheduler.Now())
			}
			connected(link)
		})
	})

	return func() { cancelled.Store(true) }
}

// open connects, resolves the pressure characteristic and subscribes to it
func (t *Transport) open(device gait.Device, address bluetooth.Address) (*insoleLink, error) {
	btDevice, err := t.adapter.Connect(address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	characteristic, err := t.findCharacteristic(btDevice)
	if err != nil {
		_ = btDevice.Disconnect()
		return nil, err
	}

	link := newInsoleLink(t.logger, t.scheduler, device, btDevice, characteristic, func() {
		t.mu.Lock()
		delete(t.links, device.ID)
		t.mu.Unlock()
	})
	t.mu.Lock()
	t.links[device.ID] = link
	t.mu.Unlock()

	if err := characteristic.EnableNotifications(link.onNotification); err != nil {
		_ = link.Close()
		return nil, fmt.Errorf("failed to enable notifications: %w", err)
	}
	t.logger.Printf("Transport: notifications enabled on %s", t.config.CharacteristicUUID)
	return link, nil
}

func (t *Transport) findCharacteristic(device bluetooth.Device) (bluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{t.service})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("error discovering services: %w", err)
	}
	if len(services) == 0 {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("service %s not found on device", t.config.ServiceUUID)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{t.characteristic})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("could not discover characteristics for service %s: %w", t.config.ServiceUUID, err)
	}
	if len(chars) == 0 {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not found in service %s", t.config.CharacteristicUUID, t.config.ServiceUUID)
	}
	return chars[0], nil
}

// Shutdown closes every open link, stops scanning and waits for the adapter goroutines
func (t *Transport) Shutdown() {
	t.logger.Println("Transport: Shutting down")
	t.mu.Lock()
	links := make([]*insoleLink, 0, len(t.links))
	for _, l := range t.links {
		links = append(links, l)
	}
	t.mu.Unlock()
	for _, l := range links {
		if err := l.Close(); err != nil {
			t.logger.Printf("Transport: error disconnecting from %s: %v", l.device.ID, err)
		}
	}
	if err := t.adapter.StopScan(); err != nil {
		t.logger.Printf("Transport: error stopping scan: %v", err)
	}
	t.wg.Wait()
	t.logger.Println("Transport: Shutdown complete")
}
