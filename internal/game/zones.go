package game

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidZones is returned when a zone table cannot be used for scoring.
var ErrInvalidZones = errors.New("invalid scoring zone table")

// ScoringZone is a half-open range [Min, Max) along the board's long axis.
type ScoringZone struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Points int     `json:"points"`
}

func (z ScoringZone) contains(pos float64) bool {
	return pos >= z.Min && pos < z.Max
}

// DefaultZones is the canonical table: short shots are penalised, the far
// end of the board is worth the most.
func DefaultZones() []ScoringZone {
	return []ScoringZone{
		{Min: 0, Max: 10, Points: -10},
		{Min: 10, Max: 15, Points: 7},
		{Min: 15, Max: 18, Points: 8},
		{Min: 18, Max: 20, Points: 10},
	}
}

// ZoneTable resolves a resting position to points. It is immutable after
// construction and safe for concurrent use.
type ZoneTable struct {
	zones       []ScoringZone
	outOfBounds int
}

// NewZoneTable validates zones and returns a table sorted by Min. The zones
// must be non-empty, finite, and partition the scoreable region with no gaps
// or overlaps.
func NewZoneTable(zones []ScoringZone, outOfBounds int) (*ZoneTable, error) {
	if len(zones) == 0 {
		return nil, fmt.Errorf("%w: no zones", ErrInvalidZones)
	}

	sorted := make([]ScoringZone, len(zones))
	copy(sorted, zones)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	for i, z := range sorted {
		if math.IsNaN(z.Min) || math.IsNaN(z.Max) || math.IsInf(z.Min, 0) || math.IsInf(z.Max, 0) {
			return nil, fmt.Errorf("%w: zone %d has non-finite bounds", ErrInvalidZones, i)
		}
		if z.Min >= z.Max {
			return nil, fmt.Errorf("%w: zone [%g,%g) is empty", ErrInvalidZones, z.Min, z.Max)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if z.Min < prev.Max {
			return nil, fmt.Errorf("%w: zones [%g,%g) and [%g,%g) overlap", ErrInvalidZones, prev.Min, prev.Max, z.Min, z.Max)
		}
		if z.Min > prev.Max {
			return nil, fmt.Errorf("%w: gap between %g and %g", ErrInvalidZones, prev.Max, z.Min)
		}
	}

	return &ZoneTable{zones: sorted, outOfBounds: outOfBounds}, nil
}

// Resolve returns the points for a resting longitudinal coordinate and
// whether any zone matched. Unmatched positions yield the out-of-bounds value.
func (t *ZoneTable) Resolve(z float64) (int, bool) {
	if math.IsNaN(z) {
		return t.outOfBounds, false
	}
	// first zone whose Max lies beyond z
	i := sort.Search(len(t.zones), func(i int) bool { return t.zones[i].Max > z })
	if i < len(t.zones) && t.zones[i].contains(z) {
		return t.zones[i].Points, true
	}
	return t.outOfBounds, false
}

// Points is Resolve without the match flag.
func (t *ZoneTable) Points(z float64) int {
	p, _ := t.Resolve(z)
	return p
}

// OutOfBounds is the value awarded to discs outside every zone.
func (t *ZoneTable) OutOfBounds() int {
	return t.outOfBounds
}

// Zones returns a copy of the table in ascending order.
func (t *ZoneTable) Zones() []ScoringZone {
	out := make([]ScoringZone, len(t.zones))
	copy(out, t.zones)
	return out
}

// Span returns the start and end of the scoreable region.
func (t *ZoneTable) Span() (float64, float64) {
	return t.zones[0].Min, t.zones[len(t.zones)-1].Max
}

// Best returns the zone with the highest value, preferring the nearer one on
// ties.
func (t *ZoneTable) Best() ScoringZone {
	best := t.zones[0]
	for _, z := range t.zones[1:] {
		if z.Points > best.Points {
			best = z
		}
	}
	return best
}
