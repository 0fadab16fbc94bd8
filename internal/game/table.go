package game

import (
	"sync"
	"time"
)

// Table drives a match's physics at a fixed rate: each tick integrates the
// simulator first and only then hands the positions to the match, so rest
// detection and scoring always read post-integration state.
type Table struct {
	match  *Match
	sim    *Simulator
	tickHz int
	quit   chan struct{}
	once   sync.Once
}

func NewTable(m *Match, sim *Simulator, tickHz int) *Table {
	if tickHz <= 0 {
		tickHz = DefaultTickHz
	}
	return &Table{
		match:  m,
		sim:    sim,
		tickHz: tickHz,
		quit:   make(chan struct{}),
	}
}

func (t *Table) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(t.tickHz))
	defer ticker.Stop()

	for {
		select {
		case <-t.quit:
			return
		case <-ticker.C:
			t.Step()
		}
	}
}

// Step runs one tick. It is a no-op unless a shot is in flight.
func (t *Table) Step() {
	if t.match.Phase() != PhaseShooting {
		return
	}
	obs := t.sim.Step(1 / float64(t.tickHz))
	t.match.ObserveTick(obs)
}

// Settle steps until the shot in flight has been resolved, for tests and
// offline simulation. It returns the number of ticks used.
func (t *Table) Settle(maxTicks int) int {
	n := 0
	for n < maxTicks && t.match.Phase() == PhaseShooting {
		t.Step()
		n++
	}
	return n
}

func (t *Table) Stop() {
	t.once.Do(func() { close(t.quit) })
}
