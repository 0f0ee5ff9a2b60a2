package bt

import (
	"tinygo.org/x/bluetooth"

	"github.com/impact-insoles/insole-app/internal/gait"
)

// scanFilter decides which advertisements are insoles and which one to pick
type scanFilter struct {
	deviceName string
	service    bluetooth.UUID
	preferred  string // address, may be empty
}

// matches reports whether an advertisement comes from an insole: either the
// advertised name or the advertised service identifies it
func (f scanFilter) matches(name string, hasService func(bluetooth.UUID) bool) bool {
	if f.deviceName != "" && name == f.deviceName {
		return true
	}
	return hasService != nil && hasService(f.service)
}

// candidates collects matching devices during one scan
type candidates struct {
	filter scanFilter
	seen   []gait.Device
}

// add records a matching device and reports whether the scan can stop now
func (c *candidates) add(d gait.Device) (done bool) {
	for i, s := range c.seen {
		if s.ID == d.ID {
			c.seen[i] = d
			return d.ID == c.filter.preferred
		}
	}
	c.seen = append(c.seen, d)
	return c.filter.preferred == "" || d.ID == c.filter.preferred
}

// pick returns the preferred device if seen, else the one with the strongest signal
func (c *candidates) pick() (gait.Device, bool) {
	if len(c.seen) == 0 {
		return gait.Device{}, false
	}
	best := c.seen[0]
	for _, d := range c.seen {
		if d.ID == c.filter.preferred {
			return d, true
		}
		if d.SignalStrength > best.SignalStrength {
			best = d
		}
	}
	return best, true
}
