package gait

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZone_Channels(t *testing.T) {
	cases := []struct {
		zone        Zone
		left, right Channel
	}{
		{ZoneHeel, HeelLeft, HeelRight},
		{ZoneArch, ArchLeft, ArchRight},
		{ZoneBall, BallLeft, BallRight},
		{ZoneToe, ToeLeft, ToeRight},
	}
	for _, c := range cases {
		l, r := c.zone.Channels()
		assert.Equal(t, c.left, l, c.zone.String())
		assert.Equal(t, c.right, r, c.zone.String())
	}
}

func TestPressure_ZoneMaxima(t *testing.T) {
	p := Pressure{240, 235, 80, 90, 30, 25, 10, 11}
	assert.Equal(t, ZoneMaxima{Heel: 240, Arch: 90, Ball: 30, Toe: 11}, p.ZoneMaxima())
}

func TestPressure_MergeMax(t *testing.T) {
	p := Pressure{10, 200, 0, 0, 5, 5, 5, 5}
	p.MergeMax(Pressure{20, 100, 1, 0, 5, 4, 6, 0})
	assert.Equal(t, Pressure{20, 200, 1, 0, 5, 5, 6, 5}, p)
}

func TestChannel_String(t *testing.T) {
	assert.Equal(t, "heel-left", HeelLeft.String())
	assert.Equal(t, "toe-right", ToeRight.String())
	assert.Equal(t, "unknown", Channel(8).String())
}
