package game

import "time"

// EventType names a match event pushed to listeners.
type EventType string

const (
	EventMatchStarted  EventType = "match_started"
	EventRoundStarted  EventType = "round_started"
	EventTurn          EventType = "turn"
	EventAim           EventType = "aim"
	EventChargeStarted EventType = "charge_started"
	EventShot          EventType = "shot"
	EventDiscResolved  EventType = "disc_resolved" // left the board mid-shot
	EventRoundScored   EventType = "round_scored"
	EventSuddenDeath   EventType = "sudden_death"
	EventGameOver      EventType = "game_over"
	EventReset         EventType = "match_reset"
	EventCancelled     EventType = "match_cancelled"
)

// Event is emitted by a match after a state change. Listeners run after the
// match lock is released and may call back into the match.
type Event struct {
	Type    EventType   `json:"type"`
	MatchID string      `json:"match_id"`
	Round   int         `json:"round"`
	Player  int         `json:"player,omitempty"`
	Aim     float64     `json:"aim,omitempty"`
	Shot    *Shot       `json:"shot,omitempty"`
	ShotNo  int         `json:"shot_number,omitempty"`
	Disc    *Disc       `json:"disc,omitempty"`
	Score   *RoundScore `json:"score,omitempty"`
	Result  *Result     `json:"result,omitempty"`
	At      time.Time   `json:"at"`
}

// Listener receives match events.
type Listener func(m *Match, e Event)

// Win types recorded on a Result.
const (
	WinThreshold   = "threshold"
	WinSuddenDeath = "sudden_death"
	WinTie         = "tie"
	WinConcede     = "concede"
	WinIdle        = "idle"
	WinDisconnect  = "disconnect"
)

// Result is the read-only summary of a finished match.
type Result struct {
	Winner      int       `json:"winner"` // 1 or 2, 0 for a tie
	WinnerID    string    `json:"winner_id,omitempty"`
	Tie         bool      `json:"tie"`
	WinType     string    `json:"win_type"`
	Totals      [2]int    `json:"totals"`
	Rounds      int       `json:"rounds"`
	Message     string    `json:"message"`
	CompletedAt time.Time `json:"completed_at"`
}
