package game

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneTableResolve(t *testing.T) {
	table, err := NewZoneTable(DefaultZones(), 0)
	require.NoError(t, err)

	tt := []struct {
		name    string
		z       float64
		points  int
		matched bool
	}{
		{"far zone", 19, 10, true},
		{"just short of the penalty edge", 9.9, -10, true},
		{"off the end", 20.5, 0, false},
		{"zone start is inclusive", 10, 7, true},
		{"zone end is exclusive", 15, 8, true},
		{"last zone end is exclusive", 20, 0, false},
		{"board start", 0, -10, true},
		{"behind the first zone", -0.5, 0, false},
		{"NaN", math.NaN(), 0, false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			points, ok := table.Resolve(tc.z)
			assert.Equal(t, tc.points, points)
			assert.Equal(t, tc.matched, ok)
		})
	}
}

func TestZoneTableEveryPositionInZoneScoresZoneValue(t *testing.T) {
	table, err := NewZoneTable(DefaultZones(), -3)
	require.NoError(t, err)

	for _, zone := range table.Zones() {
		for z := zone.Min; z < zone.Max; z += 0.01 {
			if got := table.Points(z); got != zone.Points {
				t.Fatalf("z=%.2f in [%g,%g): got %d want %d", z, zone.Min, zone.Max, got, zone.Points)
			}
		}
	}

	for _, z := range []float64{-100, -0.001, 20, 20.001, 1e9} {
		assert.Equal(t, -3, table.Points(z), "z=%g", z)
	}
}

func TestZoneTableIsPure(t *testing.T) {
	table, err := NewZoneTable(DefaultZones(), 0)
	require.NoError(t, err)

	first := table.Points(16.2)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, table.Points(16.2))
	}
}

func TestNewZoneTableSortsInput(t *testing.T) {
	zones := DefaultZones()
	zones[0], zones[3] = zones[3], zones[0]

	table, err := NewZoneTable(zones, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultZones(), table.Zones())

	lo, hi := table.Span()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 20.0, hi)
	assert.Equal(t, 10, table.Best().Points)
}

func TestNewZoneTableRejectsMalformedTables(t *testing.T) {
	tt := []struct {
		name  string
		zones []ScoringZone
	}{
		{"empty", nil},
		{"inverted", []ScoringZone{{Min: 5, Max: 1, Points: 1}}},
		{"zero width", []ScoringZone{{Min: 5, Max: 5, Points: 1}}},
		{"overlap", []ScoringZone{{Min: 0, Max: 10, Points: 1}, {Min: 9, Max: 12, Points: 2}}},
		{"gap", []ScoringZone{{Min: 0, Max: 10, Points: 1}, {Min: 11, Max: 12, Points: 2}}},
		{"infinite", []ScoringZone{{Min: 0, Max: math.Inf(1), Points: 1}}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewZoneTable(tc.zones, 0)
			assert.True(t, errors.Is(err, ErrInvalidZones), "got %v", err)
		})
	}
}
