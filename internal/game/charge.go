package game

import (
	"math"
	"time"
)

// ChargeMeter is the power bar that sweeps 0 -> 1 -> 0 while the charge
// input is held. The level at release becomes the shot power.
type ChargeMeter struct {
	Period time.Duration
}

// Level returns the meter fraction after held has elapsed.
func (c ChargeMeter) Level(held time.Duration) float64 {
	if c.Period <= 0 || held <= 0 {
		return 0
	}
	phase := math.Mod(float64(held), float64(c.Period)) / float64(c.Period)
	if phase < 0.5 {
		return phase * 2
	}
	return 2 - phase*2
}
