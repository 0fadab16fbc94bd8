package game

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policyView(t *testing.T, rules Rules) PolicyView {
	t.Helper()
	zones, err := NewZoneTable(rules.Zones, rules.OutOfBoundsPoints)
	require.NoError(t, err)
	return PolicyView{Rules: rules, Zones: zones, Player: 2, Round: 1}
}

func TestTargetPolicyLandsInBestZone(t *testing.T) {
	rules := testRules()
	view := policyView(t, rules)

	angle, power := TargetPolicy{Friction: BoardFriction}.Plan(view, nil)
	assert.Zero(t, angle)
	assert.Greater(t, power, 0.0)
	assert.LessOrEqual(t, power, 1.0)

	shot := NewShotResolver(rules, rand.New(rand.NewSource(1))).Resolve(rules.Board.LaunchPosition(), angle, power)
	shot.Disc = 1
	sim := NewSimulator(rules.Board, BoardFriction)
	sim.Launch(shot)
	sim.Simulate(testDT, MaxSimulationSteps)

	pos, ok := sim.Position(1)
	require.True(t, ok, "disc left the board")
	assert.Equal(t, view.Zones.Best().Points, view.Zones.Points(pos.Z))
}

func TestTargetPolicyNoiseStaysInRange(t *testing.T) {
	view := policyView(t, testRules())
	p := DefaultPolicy()
	rng := rand.New(rand.NewSource(7))

	base, _ := TargetPolicy{Friction: p.Friction}.Plan(view, nil)
	seenDifferent := false
	for i := 0; i < 200; i++ {
		angle, power := p.Plan(view, rng)
		assert.LessOrEqual(t, math.Abs(angle), p.AimJitter)
		assert.GreaterOrEqual(t, power, 0.0)
		assert.LessOrEqual(t, power, 1.0)
		if angle != base {
			seenDifferent = true
		}
	}
	assert.True(t, seenDifferent, "jitter never moved the aim")
}

func TestTargetPolicyDegenerateRules(t *testing.T) {
	rules := testRules()
	rules.ShotPower = 0
	angle, power := DefaultPolicy().Plan(policyView(t, rules), rand.New(rand.NewSource(1)))
	assert.Zero(t, angle)
	assert.Zero(t, power)
}
