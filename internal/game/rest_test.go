package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRestDetectorDebounces(t *testing.T) {
	d := NewRestDetector(0.1, 3)

	assert.False(t, d.Observe(0.05, 0))
	assert.False(t, d.Observe(0.05, 0))
	// jitter resets the count
	assert.False(t, d.Observe(0.2, 0))
	assert.False(t, d.Observe(0.0, 0))
	assert.False(t, d.Observe(0.0, 0))
	assert.True(t, d.Observe(0.0, 0))
	assert.True(t, d.AtRest())
}

func TestRestDetectorNeedsAngularRestToo(t *testing.T) {
	d := NewRestDetector(0.1, 1)

	assert.False(t, d.Observe(0, 0.5))
	assert.False(t, d.Observe(0, -0.5))
	assert.True(t, d.Observe(0, -0.05))
}

func TestRestDetectorSingleTick(t *testing.T) {
	d := NewRestDetector(0.1, 0)
	assert.True(t, d.Observe(0.09, 0.09))

	d.Reset()
	assert.False(t, d.AtRest())
	d.Settle()
	assert.True(t, d.AtRest())
}

func TestChargeMeterOscillates(t *testing.T) {
	m := ChargeMeter{Period: 2 * time.Second}

	tt := []struct {
		held time.Duration
		want float64
	}{
		{0, 0},
		{500 * time.Millisecond, 0.5},
		{time.Second, 1},
		{1500 * time.Millisecond, 0.5},
		{2 * time.Second, 0},
		{2500 * time.Millisecond, 0.5},
		{-time.Second, 0},
	}
	for _, tc := range tt {
		assert.InDelta(t, tc.want, m.Level(tc.held), 1e-9, "held %v", tc.held)
	}

	assert.Equal(t, 0.0, ChargeMeter{}.Level(time.Second))
}
