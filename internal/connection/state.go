package connection

import (
	"errors"

	"github.com/impact-insoles/insole-app/internal/gait"
)

var (
	ErrScanTimeout       = errors.New("no insole found before the scan timeout")
	ErrConnectTimeout    = errors.New("connection handshake timed out")
	ErrConnectionLost    = errors.New("connection to insole lost")
	ErrInvalidTransition = errors.New("invalid connection state transition")
)

// Phase is the position of the machine in the device lifecycle
type Phase int

const (
	Idle Phase = iota
	Scanning
	Found
	Connecting
	Connected
	ScanFailed
	ConnectionFailed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Found:
		return "found"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ScanFailed:
		return "scan-failed"
	case ConnectionFailed:
		return "connection-failed"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// HasDevice reports whether a device is attached in this phase
func (p Phase) HasDevice() bool {
	return p == Found || p == Connecting || p == Connected || p == ConnectionFailed
}

// State is a read-only snapshot of the connection.
// Device is set in Found, Connecting, Connected and ConnectionFailed.
// Err is set in ScanFailed and ConnectionFailed.
type State struct {
	Phase   Phase        `json:"phase"`
	Device  *gait.Device `json:"device"`
	Err     error        `json:"-"`
	ErrText string       `json:"error,omitempty"`
}

func newState(phase Phase, device *gait.Device, err error) State {
	s := State{Phase: phase, Err: err}
	if device != nil {
		d := *device
		s.Device = &d
	}
	if err != nil {
		s.ErrText = err.Error()
	}
	return s
}

func (s State) clone() State {
	return newState(s.Phase, s.Device, s.Err)
}

func (s State) String() string {
	switch {
	case s.Err != nil && s.Device != nil:
		return s.Phase.String() + " " + s.Device.String() + ": " + s.ErrText
	case s.Err != nil:
		return s.Phase.String() + ": " + s.ErrText
	case s.Device != nil:
		return s.Phase.String() + " " + s.Device.String()
	default:
		return s.Phase.String()
	}
}
