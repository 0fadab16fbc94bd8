package game

import (
	"math"
	"sort"
	"sync"
)

// DiscObservation is one disc's state after a physics tick.
type DiscObservation struct {
	Disc     DiscID  `json:"disc"`
	Position Vec3    `json:"position"`
	Velocity Vec3    `json:"velocity"`
	Spin     float64 `json:"spin"`
}

type simDisc struct {
	id       DiscID
	position Vec3
	velocity Vec3
	spin     float64
}

// Simulator is a minimal sliding-disc integrator: constant friction, spin
// decay with a little curl, and elastic-ish contacts between equal discs.
// It implements Physics for server-authoritative tables.
type Simulator struct {
	board        Board
	friction     float64
	spinFriction float64
	curl         float64
	radius       float64
	restitution  float64

	discs map[DiscID]*simDisc
	mu    sync.Mutex
}

func NewSimulator(board Board, friction float64) *Simulator {
	if friction <= 0 {
		friction = BoardFriction
	}
	return &Simulator{
		board:        board,
		friction:     friction,
		spinFriction: SpinFriction,
		curl:         CurlFactor,
		radius:       DiscRadius,
		restitution:  DiscRestitution,
		discs:        make(map[DiscID]*simDisc),
	}
}

func (s *Simulator) Launch(shot Shot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discs[shot.Disc] = &simDisc{
		id:       shot.Disc,
		position: shot.Position,
		velocity: shot.Velocity,
		spin:     shot.Spin,
	}
}

func (s *Simulator) Remove(id DiscID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.discs, id)
}

func (s *Simulator) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discs = make(map[DiscID]*simDisc)
}

// Moving reports whether any disc still has velocity or spin.
func (s *Simulator) Moving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.discs {
		if !d.velocity.IsZero() || d.spin != 0 {
			return true
		}
	}
	return false
}

// Step advances every disc by dt seconds and reports all of them. Discs that
// leave the board are reported once more at their exit position and dropped.
func (s *Simulator) Step(dt float64) []DiscObservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := s.orderedLocked()
	for _, d := range ordered {
		s.integrate(d, dt)
	}
	s.resolveContacts(ordered)

	obs := make([]DiscObservation, 0, len(ordered))
	for _, d := range ordered {
		obs = append(obs, DiscObservation{
			Disc:     d.id,
			Position: d.position,
			Velocity: d.velocity,
			Spin:     d.spin,
		})
		if !s.board.Contains(d.position) {
			delete(s.discs, d.id)
		}
	}
	return obs
}

// Simulate steps until nothing moves or maxSteps is reached, returning the
// number of steps taken.
func (s *Simulator) Simulate(dt float64, maxSteps int) int {
	steps := 0
	for steps < maxSteps && s.Moving() {
		s.Step(dt)
		steps++
	}
	return steps
}

// Position returns a disc's current position.
func (s *Simulator) Position(id DiscID) (Vec3, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discs[id]
	if !ok {
		return Vec3{}, false
	}
	return d.position, true
}

func (s *Simulator) orderedLocked() []*simDisc {
	out := make([]*simDisc, 0, len(s.discs))
	for _, d := range s.discs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *Simulator) integrate(d *simDisc, dt float64) {
	if d.velocity.IsZero() && d.spin == 0 {
		return
	}

	// curl: spin pushes the disc sideways while it is sliding
	if !d.velocity.IsZero() {
		d.velocity.X += d.spin * s.curl * dt
	}
	d.position = d.position.Plus(d.velocity.Times(dt))

	speed := d.velocity.Magnitude()
	next := speed - s.friction*dt
	if next <= 0 {
		d.velocity = Vec3{}
	} else {
		d.velocity = d.velocity.Times(next / speed)
	}

	decay := s.spinFriction * dt
	if math.Abs(d.spin) <= decay {
		d.spin = 0
	} else {
		d.spin -= math.Copysign(decay, d.spin)
	}
}

// resolveContacts separates overlapping discs and exchanges momentum along
// the contact normal.
func (s *Simulator) resolveContacts(discs []*simDisc) {
	minDist := 2 * s.radius
	for i := 0; i < len(discs); i++ {
		a := discs[i]
		for j := i + 1; j < len(discs); j++ {
			b := discs[j]
			delta := b.position.Minus(a.position)
			delta.Y = 0
			dist := delta.Magnitude()
			if dist >= minDist {
				continue
			}

			normal := delta.Normalize()
			if dist == 0 {
				normal = Vec3{Z: 1}
			}

			overlap := minDist - dist
			a.position = a.position.Minus(normal.Times(overlap / 2))
			b.position = b.position.Plus(normal.Times(overlap / 2))

			approach := a.velocity.Minus(b.velocity).Dot(normal)
			if approach <= 0 {
				continue
			}
			// equal masses
			impulse := (1 + s.restitution) * approach / 2
			a.velocity = a.velocity.Minus(normal.Times(impulse))
			b.velocity = b.velocity.Plus(normal.Times(impulse))
		}
	}
}
