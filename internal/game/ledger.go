package game

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyScored = errors.New("disc already scored this round")
	ErrNoOpenRound   = errors.New("no round is open")
	ErrUnknownPlayer = errors.New("unknown player")
)

// TiePolicy decides what happens when both players finish a round level at
// or above the win threshold.
type TiePolicy string

const (
	TieSuddenDeath TiePolicy = "sudden_death"
	TieDeclare     TiePolicy = "declare"
)

// ParseTiePolicy accepts the config spelling of a policy.
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch TiePolicy(s) {
	case TieSuddenDeath, "":
		return TieSuddenDeath, nil
	case TieDeclare:
		return TieDeclare, nil
	}
	return "", fmt.Errorf("unknown tie policy %q", s)
}

// DiscScore is one scored disc inside a round.
type DiscScore struct {
	Disc   DiscID `json:"disc"`
	Points int    `json:"points"`
}

// RoundScore is the per-round breakdown shown to players.
type RoundScore struct {
	Round       int            `json:"round"`
	Points      [2]int         `json:"points"`
	Discs       [2][]DiscScore `json:"discs"`
	Totals      [2]int         `json:"totals"` // running totals after this round
	SuddenDeath bool           `json:"sudden_death,omitempty"`
}

// Outcome is the ledger's verdict after a round closes.
type Outcome struct {
	Decided     bool `json:"decided"`
	Winner      int  `json:"winner,omitempty"` // 1 or 2; 0 with Tie
	Tie         bool `json:"tie,omitempty"`
	SuddenDeath bool `json:"sudden_death,omitempty"` // play another round without resetting
}

// ScoreLedger accumulates disc points into round scores and running totals.
// Player indexes are zero-based.
type ScoreLedger struct {
	rounds []RoundScore
	open   *RoundScore
	scored map[DiscID]struct{}
	totals [2]int
}

func NewScoreLedger() *ScoreLedger {
	return &ScoreLedger{scored: make(map[DiscID]struct{})}
}

// OpenRound starts collecting scores for round n. An unclosed round is
// discarded.
func (l *ScoreLedger) OpenRound(n int, suddenDeath bool) {
	l.open = &RoundScore{Round: n, SuddenDeath: suddenDeath}
	l.scored = make(map[DiscID]struct{})
}

// Record adds a disc's points to the open round. A disc can be recorded once
// per round.
func (l *ScoreLedger) Record(player int, disc DiscID, points int) error {
	if l.open == nil {
		return ErrNoOpenRound
	}
	if player < 0 || player > 1 {
		return ErrUnknownPlayer
	}
	if _, ok := l.scored[disc]; ok {
		return ErrAlreadyScored
	}
	l.scored[disc] = struct{}{}
	l.open.Points[player] += points
	l.open.Discs[player] = append(l.open.Discs[player], DiscScore{Disc: disc, Points: points})
	return nil
}

// IsScored reports whether disc has been recorded in the open round.
func (l *ScoreLedger) IsScored(disc DiscID) bool {
	_, ok := l.scored[disc]
	return ok
}

// CloseRound folds the open round into the running totals.
func (l *ScoreLedger) CloseRound() (RoundScore, error) {
	if l.open == nil {
		return RoundScore{}, ErrNoOpenRound
	}
	rs := *l.open
	for i := range l.totals {
		l.totals[i] += rs.Points[i]
	}
	rs.Totals = l.totals
	l.rounds = append(l.rounds, rs)
	l.open = nil
	return rs, nil
}

// Current returns the open round's partial score.
func (l *ScoreLedger) Current() (RoundScore, bool) {
	if l.open == nil {
		return RoundScore{}, false
	}
	return *l.open, true
}

func (l *ScoreLedger) Totals() [2]int {
	return l.totals
}

// Rounds returns closed rounds, oldest first.
func (l *ScoreLedger) Rounds() []RoundScore {
	out := make([]RoundScore, len(l.rounds))
	copy(out, l.rounds)
	return out
}

// Evaluate applies the win rules to the current totals:
//   - in sudden death any difference decides the match;
//   - otherwise nothing happens until someone reaches threshold;
//   - level totals at or above threshold are a tie, resolved by policy;
//   - else the higher total wins.
func (l *ScoreLedger) Evaluate(threshold int, policy TiePolicy, suddenDeath bool) Outcome {
	t1, t2 := l.totals[0], l.totals[1]

	if suddenDeath {
		if t1 == t2 {
			return Outcome{SuddenDeath: true}
		}
		return Outcome{Decided: true, Winner: higher(t1, t2)}
	}

	if t1 < threshold && t2 < threshold {
		return Outcome{}
	}

	if t1 == t2 {
		if policy == TieDeclare {
			return Outcome{Decided: true, Tie: true}
		}
		return Outcome{SuddenDeath: true}
	}

	return Outcome{Decided: true, Winner: higher(t1, t2)}
}

func higher(t1, t2 int) int {
	if t1 > t2 {
		return 1
	}
	return 2
}
