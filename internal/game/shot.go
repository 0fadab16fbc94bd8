package game

import (
	"errors"
	"math"
	"math/rand"
)

var ErrDiscAlreadyShot = errors.New("disc has already been shot this round")

// Shot is the launch handed to the physics collaborator.
type Shot struct {
	Disc     DiscID  `json:"disc"`
	Player   int     `json:"player"`
	Angle    float64 `json:"angle"` // radians, after clamping
	Power    float64 `json:"power"` // 0-1, after clamping
	Position Vec3    `json:"position"`
	Velocity Vec3    `json:"velocity"`
	Spin     float64 `json:"spin"`
}

// ShotResolver turns aim angle and normalised power into a launch velocity
// and spin. It is the only place player input becomes motion.
type ShotResolver struct {
	power         float64
	maxAngle      float64
	perturbation  float64
	spinNoise     float64
	spinPerRadian float64
	rng           *rand.Rand
}

// NewShotResolver builds a resolver from the rules. rng must not be shared
// across goroutines; the match only calls it under its lock.
func NewShotResolver(r Rules, rng *rand.Rand) *ShotResolver {
	return &ShotResolver{
		power:         r.ShotPower,
		maxAngle:      r.MaxAngle,
		perturbation:  r.Perturbation,
		spinNoise:     r.SpinPerturbation,
		spinPerRadian: r.SpinPerRadian,
		rng:           rng,
	}
}

// MaxSpeed is the upper bound on any launch speed.
func (s *ShotResolver) MaxSpeed() float64 {
	return s.power * (1 + s.perturbation)
}

// ClampAngle limits angle to [-maxAngle, maxAngle].
func (s *ShotResolver) ClampAngle(angle float64) float64 {
	if math.IsNaN(angle) {
		return 0
	}
	return math.Max(-s.maxAngle, math.Min(s.maxAngle, angle))
}

// Resolve computes a launch from origin. Zero power always yields zero speed.
func (s *ShotResolver) Resolve(origin Vec3, angle, power float64) Shot {
	angle = s.ClampAngle(angle)
	power = clamp01(power)

	speed := power * s.power * (1 + s.noise()*s.perturbation)
	dir := Vec3{Z: 1}.RotateY(angle)

	return Shot{
		Angle:    angle,
		Power:    power,
		Position: origin,
		Velocity: dir.Times(speed),
		Spin:     angle*s.spinPerRadian + s.noise()*s.spinNoise,
	}
}

// Launch resolves a shot for d and marks it shot and in play.
func (s *ShotResolver) Launch(d *Disc, origin Vec3, angle, power float64) (Shot, error) {
	if d.Shot {
		return Shot{}, ErrDiscAlreadyShot
	}
	shot := s.Resolve(origin, angle, power)
	shot.Disc = d.ID
	shot.Player = d.Owner

	d.Position = shot.Position
	d.Velocity = shot.Velocity
	d.Spin = shot.Spin
	d.Shot = true
	d.InPlay = true
	return shot, nil
}

// noise is uniform in [-1, 1).
func (s *ShotResolver) noise() float64 {
	if s.rng == nil {
		return rand.Float64()*2 - 1
	}
	return s.rng.Float64()*2 - 1
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
