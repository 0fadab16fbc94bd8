package game

import (
	"math"
	"math/rand"
)

// Policy chooses a shot for an AI seat.
type Policy interface {
	Plan(view PolicyView, rng *rand.Rand) (angle, power float64)
}

// PolicyView is what a policy is allowed to see.
type PolicyView struct {
	Rules  Rules
	Zones  *ZoneTable
	Player int
	Round  int
	Totals [2]int
	Discs  []Disc // discs currently in play
}

// TargetPolicy aims at the middle of the most valuable zone, picking the
// launch speed that stops a disc there under constant friction, then adds a
// little noise so it is beatable.
type TargetPolicy struct {
	Friction  float64
	Jitter    float64 // relative power noise
	AimJitter float64 // radians
}

func DefaultPolicy() TargetPolicy {
	return TargetPolicy{Friction: BoardFriction, Jitter: 0.04, AimJitter: 0.03}
}

func (p TargetPolicy) Plan(v PolicyView, rng *rand.Rand) (float64, float64) {
	best := v.Zones.Best()
	target := (best.Min + best.Max) / 2
	dist := target - v.Rules.Board.LaunchZ
	if dist <= 0 || v.Rules.ShotPower <= 0 {
		return 0, 0
	}

	// v^2 = 2ad
	speed := math.Sqrt(2 * p.Friction * dist)
	power := speed / v.Rules.ShotPower

	noise := func() float64 {
		if rng == nil {
			return 0
		}
		return rng.Float64()*2 - 1
	}
	power *= 1 + noise()*p.Jitter
	angle := noise() * p.AimJitter

	return angle, clamp01(power)
}
