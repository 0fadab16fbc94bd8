package game

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock fires AfterFunc callbacks only when advanced, on the caller's
// goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every callback that came due, oldest
// first, including ones scheduled by earlier callbacks.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

func testRules() Rules {
	r := DefaultRules()
	r.RoundDelay = 0
	r.AIDelay = 500 * time.Millisecond
	r.Perturbation = 0
	r.SpinPerturbation = 0
	return r
}

func newTestMatch(t *testing.T, rules Rules, ai bool) (*Match, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	m, err := NewMatch(MatchOptions{
		ID:    "match_test",
		Token: "tok",
		Players: [2]PlayerSpec{
			{ID: "p1", DisplayName: "Ada", Token: "pt1"},
			{ID: "p2", DisplayName: "Bo", Token: "pt2", AI: ai},
		},
		Rules: rules,
		Clock: clock,
		Rand:  rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	return m, clock
}

// shootAndRest fires for the acting player and parks the disc at z.
func shootAndRest(t *testing.T, m *Match, z float64) Shot {
	t.Helper()
	player := m.CurrentPlayer()
	require.NotZero(t, player, "no acting player")
	shot, err := m.Shoot(player, 0, 0.5)
	require.NoError(t, err)
	restAt(m, shot.Disc, Vec3{Z: z})
	return shot
}

func restAt(m *Match, id DiscID, pos Vec3) {
	for i := 0; i < m.Rules.RestTicks; i++ {
		m.ObserveTick([]DiscObservation{{Disc: id, Position: pos}})
	}
}

// playRound shoots each player's discs in turn order, resting them at the
// given positions.
func playRound(t *testing.T, m *Match, p1, p2 []float64) {
	t.Helper()
	i1, i2 := 0, 0
	for i1 < len(p1) || i2 < len(p2) {
		switch m.CurrentPlayer() {
		case 1:
			shootAndRest(t, m, p1[i1])
			i1++
		case 2:
			shootAndRest(t, m, p2[i2])
			i2++
		default:
			t.Fatalf("round ended early after %d/%d shots", i1, i2)
		}
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(_ *Match, e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func (l *eventLog) count(t EventType) int {
	n := 0
	for _, et := range l.types() {
		if et == t {
			n++
		}
	}
	return n
}
