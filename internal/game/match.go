package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/playshuffle/backend/internal/logging"
)

var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrNoDiscsLeft    = errors.New("no discs left this round")
	ErrWrongPhase     = errors.New("action not allowed right now")
	ErrGameOver       = errors.New("match is over")
	ErrNotInProgress  = errors.New("match is not in progress")
	ErrAlreadyStarted = errors.New("match already started")
)

const (
	timerNextRound = "next_round"
	timerAIShot    = "ai_shot"
)

// Physics is the collaborator that integrates launched discs. The match
// calls it while holding its own lock, so implementations must not call back
// into the match.
type Physics interface {
	Launch(shot Shot)
	Remove(id DiscID)
	Clear()
}

// MatchOptions configures NewMatch. Zero Clock, Policy and Rand fall back to
// the wall clock, DefaultPolicy and a time-seeded source.
type MatchOptions struct {
	ID        string
	Token     string
	Players   [2]PlayerSpec
	Rules     Rules
	Clock     Clock
	Rand      *rand.Rand
	Policy    Policy
	Physics   Physics
	ExpiresAt time.Time
}

// Match is the aggregate for one two-player game: seats, round counter,
// ledger, turn scheduler and timers. Every mutation goes through the match
// lock; events raised during an operation are delivered after it is released.
type Match struct {
	ID        string
	Token     string
	Players   [2]*Player
	Rules     Rules
	SessionID int
	CreatedAt time.Time
	ExpiresAt time.Time

	zones     *ZoneTable
	ledger    *ScoreLedger
	shots     *ShotResolver
	meter     ChargeMeter
	clock     Clock
	rng       *rand.Rand
	policy    Policy
	physics   Physics
	timers    *timerSet
	rest      map[DiscID]*RestDetector
	listeners []Listener
	pending   []Event

	status        GameStatus
	phase         Phase
	round         int
	current       int // index into Players
	aim           float64
	chargeStarted time.Time
	suddenDeath   bool
	shotNumber    int
	result        *Result
	startedAt     *time.Time
	completedAt   *time.Time
	lastActivity  time.Time

	mu sync.Mutex
}

// NewMatch validates the rules and seats both players. An unusable zone
// table is a setup error.
func NewMatch(opts MatchOptions) (*Match, error) {
	if err := opts.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("new match: %w", err)
	}
	zones, err := NewZoneTable(opts.Rules.Zones, opts.Rules.OutOfBoundsPoints)
	if err != nil {
		return nil, fmt.Errorf("new match: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(clock.Now().UnixNano()))
	}
	var policy Policy = DefaultPolicy()
	if opts.Policy != nil {
		policy = opts.Policy
	}

	now := clock.Now()
	launch := opts.Rules.Board.LaunchPosition()
	m := &Match{
		ID:           opts.ID,
		Token:        opts.Token,
		Rules:        opts.Rules,
		CreatedAt:    now,
		ExpiresAt:    opts.ExpiresAt,
		zones:        zones,
		ledger:       NewScoreLedger(),
		shots:        NewShotResolver(opts.Rules, rng),
		meter:        ChargeMeter{Period: opts.Rules.ChargePeriod},
		clock:        clock,
		rng:          rng,
		policy:       policy,
		physics:      opts.Physics,
		timers:       newTimerSet(clock),
		rest:         make(map[DiscID]*RestDetector),
		status:       StatusWaiting,
		phase:        PhaseIdle,
		lastActivity: now,
	}
	for i, spec := range opts.Players {
		m.Players[i] = newPlayer(i+1, spec, opts.Rules.DiscsPerPlayer, launch)
	}
	return m, nil
}

// Subscribe registers a listener for every subsequent event.
func (m *Match) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Start moves a waiting match into round 1 with player 1 to act.
func (m *Match) Start() error {
	return m.do(func() error {
		if m.status != StatusWaiting {
			return ErrAlreadyStarted
		}
		now := m.clock.Now()
		m.status = StatusInProgress
		m.startedAt = &now
		m.lastActivity = now
		m.emit(Event{Type: EventMatchStarted})
		m.beginRoundLocked(1)
		logging.Log.Infof("[MATCH] %s started, %s vs %s", m.ID, m.Players[0].ID, m.Players[1].ID)
		return nil
	})
}

// SetAim points the active disc. The angle is clamped to the allowed range.
func (m *Match) SetAim(player int, angle float64) error {
	return m.do(func() error {
		if err := m.checkTurnLocked(player); err != nil {
			return err
		}
		m.setAimLocked(angle)
		return nil
	})
}

// AdjustAim nudges the current aim by delta radians.
func (m *Match) AdjustAim(player int, delta float64) error {
	return m.do(func() error {
		if err := m.checkTurnLocked(player); err != nil {
			return err
		}
		m.setAimLocked(m.aim + delta)
		return nil
	})
}

// StartCharge begins sweeping the power meter for the acting player.
func (m *Match) StartCharge(player int) error {
	return m.do(func() error {
		if err := m.checkTurnLocked(player); err != nil {
			return err
		}
		if m.phase != PhaseAiming {
			return ErrWrongPhase
		}
		m.phase = PhaseCharging
		m.chargeStarted = m.clock.Now()
		m.lastActivity = m.chargeStarted
		m.emit(Event{Type: EventChargeStarted, Player: player})
		return nil
	})
}

// ReleaseCharge samples the meter and shoots the active disc.
func (m *Match) ReleaseCharge(player int) (Shot, error) {
	var shot Shot
	err := m.do(func() error {
		if err := m.checkTurnLocked(player); err != nil {
			return err
		}
		if m.phase != PhaseCharging {
			return ErrWrongPhase
		}
		power := m.meter.Level(m.clock.Now().Sub(m.chargeStarted))
		var err error
		shot, err = m.shootLocked(power)
		return err
	})
	return shot, err
}

// Shoot fires the active disc with an explicit angle and power, skipping the
// server-side meter. Used by AI seats and clients that run their own meter.
func (m *Match) Shoot(player int, angle, power float64) (Shot, error) {
	var shot Shot
	err := m.do(func() error {
		if err := m.checkTurnLocked(player); err != nil {
			return err
		}
		m.aim = m.shots.ClampAngle(angle)
		var err error
		shot, err = m.shootLocked(power)
		return err
	})
	return shot, err
}

// ObserveTick feeds one physics tick. Positions must already reflect the
// tick's integration. Discs that left the board are scored out of bounds at
// once; when every disc in play is at rest the shot ends.
func (m *Match) ObserveTick(obs []DiscObservation) {
	m.do(func() error {
		if m.status != StatusInProgress || m.phase != PhaseShooting {
			return nil
		}
		for _, ob := range obs {
			d := m.discLocked(ob.Disc)
			if d == nil || !d.InPlay {
				continue
			}
			d.Position = ob.Position
			d.Velocity = ob.Velocity
			d.Spin = ob.Spin
			if !m.Rules.Board.Contains(d.Position) {
				m.resolveOutOfBoundsLocked(d)
				continue
			}
			m.detectorLocked(d.ID).Observe(d.Velocity.Magnitude(), d.Spin)
		}
		if m.allRestingLocked() {
			m.endShotLocked()
		}
		return nil
	})
}

// Concede ends the match in the opponent's favour.
func (m *Match) Concede(player int) error {
	return m.Forfeit(player, WinConcede)
}

// Forfeit ends an in-progress match against player.
func (m *Match) Forfeit(player int, winType string) error {
	return m.do(func() error {
		if m.status != StatusInProgress {
			return ErrNotInProgress
		}
		if player < 1 || player > 2 {
			return ErrUnknownPlayer
		}
		m.finishLocked(Result{Winner: 3 - player, WinType: winType})
		logging.Log.Infof("[MATCH] %s forfeited by player %d (%s)", m.ID, player, winType)
		return nil
	})
}

// Reset restarts a started match from round 1 with zero scores. Pending
// timers are canceled so nothing from the previous game can fire into the
// new one.
func (m *Match) Reset() error {
	return m.do(func() error {
		if m.status == StatusWaiting || m.status == StatusCancelled {
			return ErrNotInProgress
		}
		m.resetLocked()
		return nil
	})
}

// Rematch restarts the match with the same seats. Unlike Reset it only
// applies once the match is over, so a seat cannot wipe a game in play.
func (m *Match) Rematch() error {
	return m.do(func() error {
		switch m.status {
		case StatusCompleted:
			m.resetLocked()
			return nil
		case StatusInProgress:
			return ErrWrongPhase
		default:
			return ErrNotInProgress
		}
	})
}

func (m *Match) resetLocked() {
	m.timers.cancelAll()
	m.ledger = NewScoreLedger()
	m.suddenDeath = false
	m.result = nil
	m.completedAt = nil
	m.shotNumber = 0
	for _, p := range m.Players {
		p.Score = 0
	}
	now := m.clock.Now()
	m.status = StatusInProgress
	m.startedAt = &now
	m.lastActivity = now
	m.emit(Event{Type: EventReset})
	m.beginRoundLocked(1)
	logging.Log.Infof("[MATCH] %s reset", m.ID)
}

// Close tears the match down. Unfinished matches become cancelled.
func (m *Match) Close() {
	m.do(func() error {
		m.timers.cancelAll()
		if m.status == StatusCompleted || m.status == StatusCancelled {
			return nil
		}
		now := m.clock.Now()
		m.status = StatusCancelled
		m.phase = PhaseGameOver
		m.completedAt = &now
		m.emit(Event{Type: EventCancelled})
		return nil
	})
}

// === Turn scheduler ===

func (m *Match) checkTurnLocked(player int) error {
	switch m.status {
	case StatusCompleted, StatusCancelled:
		return ErrGameOver
	case StatusInProgress:
	default:
		return ErrNotInProgress
	}
	if !m.phase.acceptsInput() {
		return ErrWrongPhase
	}
	if player != m.current+1 {
		return ErrNotYourTurn
	}
	if m.Players[m.current].Remaining() == 0 {
		return ErrNoDiscsLeft
	}
	return nil
}

func (m *Match) setAimLocked(angle float64) {
	m.aim = m.shots.ClampAngle(angle)
	m.lastActivity = m.clock.Now()
	m.emit(Event{Type: EventAim, Player: m.current + 1, Aim: m.aim})
}

func (m *Match) beginRoundLocked(n int) {
	m.round = n
	launch := m.Rules.Board.LaunchPosition()
	for _, p := range m.Players {
		p.resetRound(launch)
	}
	m.rest = make(map[DiscID]*RestDetector)
	m.ledger.OpenRound(n, m.suddenDeath)
	if m.physics != nil {
		m.physics.Clear()
	}
	m.emit(Event{Type: EventRoundStarted})
	m.startTurnLocked(0)
}

func (m *Match) startTurnLocked(idx int) {
	m.current = idx
	m.phase = PhaseAiming
	m.aim = 0
	p := m.Players[idx]
	m.emit(Event{Type: EventTurn, Player: p.Number})
	if p.AI {
		m.scheduleLocked(timerAIShot, m.Rules.AIDelay, m.aiShotLocked)
	}
}

func (m *Match) aiShotLocked() {
	if m.status != StatusInProgress || !m.phase.acceptsInput() {
		return
	}
	p := m.Players[m.current]
	if !p.AI {
		return
	}
	angle, power := m.policy.Plan(m.policyViewLocked(), m.rng)
	m.aim = m.shots.ClampAngle(angle)
	if _, err := m.shootLocked(power); err != nil {
		logging.Log.Warnf("[MATCH] %s AI shot failed for player %d: %v", m.ID, p.Number, err)
	}
}

func (m *Match) shootLocked(power float64) (Shot, error) {
	p := m.Players[m.current]
	d := p.nextDisc()
	if d == nil {
		return Shot{}, ErrNoDiscsLeft
	}

	shot, err := m.shots.Launch(d, m.Rules.Board.LaunchPosition(), m.aim, power)
	if err != nil {
		return Shot{}, err
	}
	m.timers.cancel(timerAIShot)
	p.ShotsTaken++
	m.shotNumber++
	m.phase = PhaseShooting
	m.lastActivity = m.clock.Now()

	// Resting discs stay settled until a tick shows them moving.
	for _, pl := range m.Players {
		for _, o := range pl.Discs {
			if !o.InPlay {
				continue
			}
			det := m.detectorLocked(o.ID)
			if o.ID == d.ID {
				det.Reset()
			} else {
				det.Settle()
			}
		}
	}

	if m.physics != nil {
		m.physics.Launch(shot)
	}
	m.emit(Event{Type: EventShot, Player: p.Number, Shot: &shot, ShotNo: m.shotNumber})
	logging.Log.Debugf("[MATCH] %s shot #%d by player %d disc=%d angle=%.3f power=%.3f",
		m.ID, m.shotNumber, p.Number, d.ID, shot.Angle, shot.Power)
	return shot, nil
}

func (m *Match) endShotLocked() {
	cur, other := m.current, 1-m.current
	switch {
	case m.Players[other].Remaining() > 0:
		m.startTurnLocked(other)
	case m.Players[cur].Remaining() > 0:
		m.startTurnLocked(cur)
	default:
		m.scoreRoundLocked()
	}
}

func (m *Match) resolveOutOfBoundsLocked(d *Disc) {
	d.InPlay = false
	d.Velocity = Vec3{}
	d.Spin = 0
	delete(m.rest, d.ID)
	if m.physics != nil {
		m.physics.Remove(d.ID)
	}
	if err := m.scoreDiscLocked(d, m.zones.OutOfBounds()); err != nil {
		logging.Log.Warnf("[MATCH] %s could not score disc %d: %v", m.ID, d.ID, err)
	}
	disc := *d
	m.emit(Event{Type: EventDiscResolved, Player: d.Owner, Disc: &disc})
}

func (m *Match) scoreDiscLocked(d *Disc, points int) error {
	if d.Scored {
		return ErrAlreadyScored
	}
	if err := m.ledger.Record(d.Owner-1, d.ID, points); err != nil {
		return err
	}
	d.Scored = true
	d.Points = points
	return nil
}

func (m *Match) scoreRoundLocked() {
	m.phase = PhaseScoring
	for _, p := range m.Players {
		for _, d := range p.Discs {
			if !d.Shot || d.Scored {
				continue
			}
			points := m.zones.OutOfBounds()
			if d.InPlay {
				points = m.zones.Points(d.Position.Z)
			}
			if err := m.scoreDiscLocked(d, points); err != nil {
				logging.Log.Warnf("[MATCH] %s could not score disc %d: %v", m.ID, d.ID, err)
			}
		}
	}

	rs, err := m.ledger.CloseRound()
	if err != nil {
		logging.Log.Errorf("[MATCH] %s close round %d: %v", m.ID, m.round, err)
		return
	}
	totals := m.ledger.Totals()
	m.Players[0].Score = totals[0]
	m.Players[1].Score = totals[1]
	m.phase = PhaseRoundTransition
	m.emit(Event{Type: EventRoundScored, Score: &rs})
	logging.Log.Infof("[MATCH] %s round %d scored %v, totals %v", m.ID, m.round, rs.Points, totals)

	out := m.ledger.Evaluate(m.Rules.WinThreshold, m.Rules.TiePolicy, m.suddenDeath)
	if out.Decided {
		res := Result{Winner: out.Winner, Tie: out.Tie, WinType: WinThreshold}
		switch {
		case out.Tie:
			res.WinType = WinTie
		case m.suddenDeath:
			res.WinType = WinSuddenDeath
		}
		m.finishLocked(res)
		return
	}
	if out.SuddenDeath && !m.suddenDeath {
		m.suddenDeath = true
		m.emit(Event{Type: EventSuddenDeath})
	}

	next := m.round + 1
	if m.Rules.RoundDelay <= 0 {
		m.beginRoundLocked(next)
		return
	}
	m.scheduleLocked(timerNextRound, m.Rules.RoundDelay, func() {
		if m.status == StatusInProgress && m.phase == PhaseRoundTransition {
			m.beginRoundLocked(next)
		}
	})
}

func (m *Match) finishLocked(res Result) {
	now := m.clock.Now()
	m.timers.cancelAll()
	m.status = StatusCompleted
	m.phase = PhaseGameOver
	m.completedAt = &now
	m.lastActivity = now

	res.Totals = m.ledger.Totals()
	res.Rounds = len(m.ledger.Rounds())
	res.CompletedAt = now
	if res.Winner > 0 {
		res.WinnerID = m.Players[res.Winner-1].ID
		res.Message = fmt.Sprintf("Player %d wins", res.Winner)
	} else {
		res.Tie = true
		res.Message = "Tie"
	}
	m.result = &res

	out := res
	m.emit(Event{Type: EventGameOver, Result: &out})
	logging.Log.Infof("[MATCH] %s over: %s (%s) totals=%v", m.ID, res.Message, res.WinType, res.Totals)
}

// === Helpers ===

func (m *Match) allRestingLocked() bool {
	for _, p := range m.Players {
		for _, d := range p.Discs {
			if !d.InPlay {
				continue
			}
			det, ok := m.rest[d.ID]
			if !ok || !det.AtRest() {
				return false
			}
		}
	}
	return true
}

func (m *Match) detectorLocked(id DiscID) *RestDetector {
	det, ok := m.rest[id]
	if !ok {
		det = NewRestDetector(m.Rules.RestEpsilon, m.Rules.RestTicks)
		m.rest[id] = det
	}
	return det
}

func (m *Match) discLocked(id DiscID) *Disc {
	n := m.Rules.DiscsPerPlayer
	if id < 0 || int(id) >= 2*n {
		return nil
	}
	return m.Players[int(id)/n].Discs[int(id)%n]
}

func (m *Match) policyViewLocked() PolicyView {
	v := PolicyView{
		Rules:  m.Rules,
		Zones:  m.zones,
		Player: m.current + 1,
		Round:  m.round,
		Totals: m.ledger.Totals(),
	}
	for _, p := range m.Players {
		for _, d := range p.Discs {
			if d.InPlay {
				v.Discs = append(v.Discs, *d)
			}
		}
	}
	return v
}

func (m *Match) emit(e Event) {
	e.MatchID = m.ID
	if e.Round == 0 {
		e.Round = m.round
	}
	e.At = m.clock.Now()
	m.pending = append(m.pending, e)
}

// scheduleLocked registers a deferred callback that runs under the match
// lock, unless it has been canceled or replaced by then.
func (m *Match) scheduleLocked(name string, d time.Duration, fn func()) {
	m.timers.schedule(name, d, func(seq uint64) {
		m.do(func() error {
			if m.timers.claim(name, seq) {
				fn()
			}
			return nil
		})
	})
}

// do runs fn under the lock, then delivers the events it raised.
func (m *Match) do(fn func() error) error {
	m.mu.Lock()
	err := fn()
	events := m.pending
	m.pending = nil
	listeners := m.listeners
	m.mu.Unlock()

	for _, e := range events {
		for _, l := range listeners {
			l(m, e)
		}
	}
	return err
}
