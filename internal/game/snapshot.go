package game

import "time"

// PlayerView is the public face of a seat.
type PlayerView struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	DisplayName string `json:"display_name,omitempty"`
	AI          bool   `json:"ai"`
	Score       int    `json:"score"`
	Remaining   int    `json:"discs_remaining"`
	Connected   bool   `json:"connected"`
}

// Snapshot is everything the display collaborator needs to draw a match.
type Snapshot struct {
	MatchID       string        `json:"match_id"`
	Token         string        `json:"token"`
	Status        GameStatus    `json:"status"`
	Phase         Phase         `json:"phase"`
	Round         int           `json:"round"`
	CurrentPlayer int           `json:"current_player"`
	CurrentTurn   string        `json:"current_turn"`
	ActiveDisc    *DiscID       `json:"active_disc,omitempty"`
	Aim           float64       `json:"aim"`
	PowerMeter    float64       `json:"power_meter"`
	WinThreshold  int           `json:"win_threshold"`
	SuddenDeath   bool          `json:"sudden_death"`
	ShotNumber    int           `json:"shot_number"`
	Totals        [2]int        `json:"totals"`
	Rounds        []RoundScore  `json:"rounds"`
	CurrentRound  *RoundScore   `json:"current_round,omitempty"`
	Players       [2]PlayerView `json:"players"`
	Discs         []Disc        `json:"discs"`
	Zones         []ScoringZone `json:"zones"`
	Result        *Result       `json:"result,omitempty"`
	Message       string        `json:"message,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// PlayerState is a snapshot personalised for one seat.
type PlayerState struct {
	Type string `json:"type,omitempty"`
	Snapshot
	MyID     string `json:"my_id"`
	MyNumber int    `json:"my_number"`
	MyTurn   bool   `json:"my_turn"`
}

func (m *Match) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// StateFor returns the snapshot as seen by playerID.
func (m *Match) StateFor(playerID string) PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := PlayerState{Snapshot: m.snapshotLocked(), MyID: playerID}
	for _, p := range m.Players {
		if p.ID == playerID {
			s.MyNumber = p.Number
		}
	}
	s.MyTurn = s.MyNumber != 0 && s.MyNumber == s.CurrentPlayer &&
		m.status == StatusInProgress && m.phase.acceptsInput()
	return s
}

func (m *Match) snapshotLocked() Snapshot {
	s := Snapshot{
		MatchID:      m.ID,
		Token:        m.Token,
		Status:       m.status,
		Phase:        m.phase,
		Round:        m.round,
		Aim:          m.aim,
		PowerMeter:   m.chargeLevelLocked(),
		WinThreshold: m.Rules.WinThreshold,
		SuddenDeath:  m.suddenDeath,
		ShotNumber:   m.shotNumber,
		Totals:       m.ledger.Totals(),
		Rounds:       m.ledger.Rounds(),
		Zones:        m.zones.Zones(),
		CreatedAt:    m.CreatedAt,
		StartedAt:    m.startedAt,
		CompletedAt:  m.completedAt,
	}
	if m.status == StatusInProgress {
		cur := m.Players[m.current]
		s.CurrentPlayer = cur.Number
		s.CurrentTurn = cur.ID
		if m.phase.acceptsInput() {
			if d := cur.nextDisc(); d != nil {
				id := d.ID
				s.ActiveDisc = &id
			}
		}
	}
	if rs, ok := m.ledger.Current(); ok {
		s.CurrentRound = &rs
	}
	for i, p := range m.Players {
		s.Players[i] = PlayerView{
			ID:          p.ID,
			Number:      p.Number,
			DisplayName: p.DisplayName,
			AI:          p.AI,
			Score:       p.Score,
			Remaining:   p.Remaining(),
			Connected:   p.Connected,
		}
		for _, d := range p.Discs {
			if d.Shot {
				s.Discs = append(s.Discs, *d)
			}
		}
	}
	if m.result != nil {
		res := *m.result
		s.Result = &res
		s.Message = res.Message
	} else if m.suddenDeath && m.status == StatusInProgress {
		s.Message = "Sudden death"
	}
	return s
}

func (m *Match) chargeLevelLocked() float64 {
	if m.phase != PhaseCharging {
		return 0
	}
	return m.meter.Level(m.clock.Now().Sub(m.chargeStarted))
}

// ChargeLevel is the live power meter fraction.
func (m *Match) ChargeLevel() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chargeLevelLocked()
}

func (m *Match) Status() GameStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Match) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Match) Round() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round
}

// CurrentPlayer returns the acting seat number, or 0 outside play.
func (m *Match) CurrentPlayer() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusInProgress {
		return 0
	}
	return m.current + 1
}

// CurrentPlayerID is the ID of the acting seat, or "" outside play.
func (m *Match) CurrentPlayerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusInProgress {
		return ""
	}
	return m.Players[m.current].ID
}

func (m *Match) Totals() [2]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Totals()
}

func (m *Match) Rounds() []RoundScore {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Rounds()
}

// Result returns the final summary once the match is over.
func (m *Match) Result() (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result == nil {
		return Result{}, false
	}
	return *m.result, true
}

func (m *Match) SuddenDeath() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suddenDeath
}

func (m *Match) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// PendingTimers is the number of scheduled callbacks, for diagnostics.
func (m *Match) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timers.len()
}

// === Seats and connections ===

// PlayerNumber maps a player ID to its seat number, or 0.
func (m *Match) PlayerNumber(playerID string) int {
	for _, p := range m.Players {
		if p.ID == playerID {
			return p.Number
		}
	}
	return 0
}

// PlayerByToken resolves the seat whose secret token matches.
func (m *Match) PlayerByToken(token string) *Player {
	if token == "" {
		return nil
	}
	for _, p := range m.Players {
		if !p.AI && p.PlayerToken == token {
			return p
		}
	}
	return nil
}

func (m *Match) GetOpponentID(playerID string) string {
	if m.Players[0].ID == playerID {
		return m.Players[1].ID
	}
	return m.Players[0].ID
}

func (m *Match) SetPlayerConnected(playerID string, connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Players {
		if p.ID != playerID {
			continue
		}
		p.Connected = connected
		if connected {
			p.ShowedUp = true
			p.DisconnectedAt = nil
		} else {
			now := m.clock.Now()
			p.DisconnectedAt = &now
		}
	}
}

// IsConnected reports a seat's connection state and when it dropped.
func (m *Match) IsConnected(playerID string) (bool, *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Players {
		if p.ID == playerID {
			return p.Connected, p.DisconnectedAt
		}
	}
	return false, nil
}

func (m *Match) BothPlayersConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Players[0].Connected && m.Players[1].Connected
}
