package game

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/playshuffle/backend/internal/config"
)

// Board is the playable volume. A disc outside it has left the table.
type Board struct {
	HalfWidth float64 `json:"half_width"`
	MinZ      float64 `json:"min_z"`
	MaxZ      float64 `json:"max_z"`
	MinY      float64 `json:"min_y"`
	MaxY      float64 `json:"max_y"`
	LaunchZ   float64 `json:"launch_z"`
}

func DefaultBoard() Board {
	return Board{
		HalfWidth: BoardHalfWidth,
		MinZ:      LaunchZ - 1,
		MaxZ:      BoardLength,
		MinY:      BoardMinY,
		MaxY:      BoardMaxY,
		LaunchZ:   LaunchZ,
	}
}

// Contains reports whether p is inside the playable volume.
func (b Board) Contains(p Vec3) bool {
	if !p.IsFinite() {
		return false
	}
	return p.X >= -b.HalfWidth && p.X <= b.HalfWidth &&
		p.Y >= b.MinY && p.Y <= b.MaxY &&
		p.Z >= b.MinZ && p.Z <= b.MaxZ
}

// LaunchPosition is where the active disc sits while being aimed.
func (b Board) LaunchPosition() Vec3 {
	return Vec3{Z: b.LaunchZ}
}

// Rules is one complete, canonical rule set for a match.
type Rules struct {
	DiscsPerPlayer    int           `json:"discs_per_player"`
	WinThreshold      int           `json:"win_threshold"`
	Zones             []ScoringZone `json:"zones"`
	OutOfBoundsPoints int           `json:"out_of_bounds_points"`
	TiePolicy         TiePolicy     `json:"tie_policy"`
	Board             Board         `json:"board"`

	ShotPower        float64       `json:"shot_power"`
	MaxAngle         float64       `json:"max_angle"`
	Perturbation     float64       `json:"perturbation"`
	SpinPerturbation float64       `json:"spin_perturbation"`
	SpinPerRadian    float64       `json:"spin_per_radian"`
	ChargePeriod     time.Duration `json:"charge_period"`

	RestEpsilon float64 `json:"rest_epsilon"`
	RestTicks   int     `json:"rest_ticks"`

	RoundDelay time.Duration `json:"round_delay"`
	AIDelay    time.Duration `json:"ai_delay"`
}

func DefaultRules() Rules {
	return Rules{
		DiscsPerPlayer:    DefaultDiscsPerPlayer,
		WinThreshold:      DefaultWinThreshold,
		Zones:             DefaultZones(),
		OutOfBoundsPoints: 0,
		TiePolicy:         TieSuddenDeath,
		Board:             DefaultBoard(),
		ShotPower:         ShotPower,
		MaxAngle:          MaxAimRadians,
		Perturbation:      ShotPerturbation,
		SpinPerturbation:  SpinPerturbation,
		SpinPerRadian:     SpinPerRadian,
		ChargePeriod:      2 * time.Second,
		RestEpsilon:       RestEpsilon,
		RestTicks:         RestTicks,
		RoundDelay:        3 * time.Second,
		AIDelay:           1200 * time.Millisecond,
	}
}

// Validate rejects rule sets a match cannot safely run with.
func (r Rules) Validate() error {
	if r.DiscsPerPlayer < 1 {
		return errors.New("discs per player must be at least 1")
	}
	if r.WinThreshold < 1 {
		return errors.New("win threshold must be positive")
	}
	if r.ShotPower <= 0 {
		return errors.New("shot power must be positive")
	}
	if r.MaxAngle < 0 || r.MaxAngle >= math.Pi/2 {
		return errors.New("max aim angle must be in [0, pi/2)")
	}
	if r.Perturbation < 0 || r.Perturbation >= 1 {
		return errors.New("shot perturbation must be in [0, 1)")
	}
	if r.RestEpsilon <= 0 {
		return errors.New("rest epsilon must be positive")
	}
	if _, err := ParseTiePolicy(string(r.TiePolicy)); err != nil {
		return err
	}
	if _, err := NewZoneTable(r.Zones, r.OutOfBoundsPoints); err != nil {
		return err
	}
	return nil
}

// RulesFromConfig overlays config values on the canonical rules.
func RulesFromConfig(cfg *config.Config) (Rules, error) {
	r := DefaultRules()
	if cfg == nil {
		return r, nil
	}

	policy, err := ParseTiePolicy(cfg.TiePolicy)
	if err != nil {
		return Rules{}, fmt.Errorf("load rules: %w", err)
	}

	r.DiscsPerPlayer = cfg.DiscsPerPlayer
	r.WinThreshold = cfg.WinThreshold
	r.OutOfBoundsPoints = cfg.OutOfBoundsPoints
	r.TiePolicy = policy
	r.ShotPower = cfg.ShotPower
	r.MaxAngle = cfg.MaxAimDegrees * math.Pi / 180
	r.Perturbation = cfg.ShotPerturbation
	r.SpinPerturbation = cfg.SpinPerturbation
	r.ChargePeriod = cfg.ChargePeriod()
	r.RestEpsilon = cfg.RestEpsilon
	r.RestTicks = cfg.RestTicks
	r.RoundDelay = cfg.RoundDelay()
	r.AIDelay = cfg.AIDelay()

	if err := r.Validate(); err != nil {
		return Rules{}, fmt.Errorf("load rules: %w", err)
	}
	return r, nil
}
