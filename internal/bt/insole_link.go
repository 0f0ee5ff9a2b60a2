package bt

import (
	"log"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/events"
	"github.com/impact-insoles/insole-app/internal/gait"
	"github.com/impact-insoles/insole-app/internal/sched"
	"github.com/impact-insoles/insole-app/internal/telemetry"
)

// insoleLink is an open GATT connection streaming pressure notifications.
// Notifications arrive on the adapter's goroutine and are decoded on the
// scheduler's dispatch context.
type insoleLink struct {
	logger         *log.Logger
	scheduler      sched.Scheduler
	device         gait.Device
	btDevice       bluetooth.Device
	characteristic bluetooth.DeviceCharacteristic
	onClose        func()

	out   *telemetry.Fanout
	steps *telemetry.StepDetector
	lost  *events.CallbackEvent[error]

	mu      sync.Mutex
	closed  bool
	dropped int
}

var _ connection.Link = (*insoleLink)(nil)

func newInsoleLink(
	logger *log.Logger,
	scheduler sched.Scheduler,
	device gait.Device,
	btDevice bluetooth.Device,
	characteristic bluetooth.DeviceCharacteristic,
	onClose func(),
) *insoleLink {
	return &insoleLink{
		logger:         logger,
		scheduler:      scheduler,
		device:         device,
		btDevice:       btDevice,
		characteristic: characteristic,
		onClose:        onClose,
		out:            telemetry.NewFanout(nil, nil),
		steps:          telemetry.NewStepDetector(),
		lost:           events.NewCallbackEvent[error](false),
	}
}

func (l *insoleLink) Source() telemetry.Source {
	return l
}

// Subscribe must be called on the scheduler's dispatch context
func (l *insoleLink) Subscribe(onFrame telemetry.FrameHandler) telemetry.Unsubscribe {
	return l.out.Subscribe(onFrame)
}

func (l *insoleLink) OnLost(callback func(cause error)) func() {
	return l.lost.Listen(callback)
}

// onNotification runs on the adapter's goroutine
func (l *insoleLink) onNotification(buf []byte) {
	ts := l.scheduler.Now()
	payload := append([]byte(nil), buf...)
	l.scheduler.Post(func() {
		if l.isClosed() {
			return
		}
		frame, err := telemetry.DecodeFrame(payload, ts, l.steps)
		if err != nil {
			l.mu.Lock()
			l.dropped++
			dropped := l.dropped
			l.mu.Unlock()
			l.logger.Printf("insoleLink: dropping notification %d from %s: %v", dropped, l.device.ID, err)
			return
		}
		l.out.Publish(frame)
	})
}

// lose reports a disconnect seen by the adapter; it runs on the adapter's goroutine
func (l *insoleLink) lose(cause error) {
	l.scheduler.Post(func() {
		if l.isClosed() {
			return
		}
		l.markClosed()
		l.logger.Printf("insoleLink: %s lost: %v", l.device.ID, cause)
		l.lost.Notify(cause)
	})
}

func (l *insoleLink) Close() error {
	if !l.markClosed() {
		return nil
	}
	l.logger.Printf("insoleLink: closing %s", l.device.ID)
	l.onClose()
	if err := l.characteristic.EnableNotifications(nil); err != nil {
		l.logger.Printf("insoleLink: DisableNotifications failed: %v", err)
	}
	return l.btDevice.Disconnect()
}

func (l *insoleLink) markClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.closed = true
	return true
}

func (l *insoleLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
