package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeRound(t *testing.T, l *ScoreLedger, n int, p1, p2 []int) RoundScore {
	t.Helper()
	l.OpenRound(n, false)
	for i, pts := range p1 {
		require.NoError(t, l.Record(0, DiscID(i), pts))
	}
	for i, pts := range p2 {
		require.NoError(t, l.Record(1, DiscID(100+i), pts))
	}
	rs, err := l.CloseRound()
	require.NoError(t, err)
	return rs
}

func TestLedgerRoundSumsDiscPoints(t *testing.T) {
	l := NewScoreLedger()
	rs := closeRound(t, l, 1, []int{10, 7, 8, -10}, nil)

	assert.Equal(t, 15, rs.Points[0])
	assert.Equal(t, 0, rs.Points[1])
	assert.Len(t, rs.Discs[0], 4)
	assert.Equal(t, [2]int{15, 0}, l.Totals())
	assert.Equal(t, [2]int{15, 0}, rs.Totals)
}

func TestLedgerRejectsDoubleScoring(t *testing.T) {
	l := NewScoreLedger()
	l.OpenRound(1, false)
	require.NoError(t, l.Record(0, 3, 8))

	assert.ErrorIs(t, l.Record(0, 3, 8), ErrAlreadyScored)
	assert.ErrorIs(t, l.Record(1, 3, 8), ErrAlreadyScored)
	assert.ErrorIs(t, l.Record(2, 4, 8), ErrUnknownPlayer)
	assert.True(t, l.IsScored(3))

	rs, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, 8, rs.Points[0])

	_, err := l.CloseRound()
	require.NoError(t, err)

	// the same disc scores again next round
	l.OpenRound(2, false)
	assert.False(t, l.IsScored(3))
	assert.NoError(t, l.Record(0, 3, 7))
}

func TestLedgerNeedsOpenRound(t *testing.T) {
	l := NewScoreLedger()
	assert.ErrorIs(t, l.Record(0, 1, 1), ErrNoOpenRound)
	_, err := l.CloseRound()
	assert.ErrorIs(t, err, ErrNoOpenRound)
	_, ok := l.Current()
	assert.False(t, ok)
}

func TestLedgerTotalsAreSumOfRounds(t *testing.T) {
	l := NewScoreLedger()
	closeRound(t, l, 1, []int{10, 10}, []int{-10, 7})
	closeRound(t, l, 2, []int{8, 0}, []int{10, 10})
	closeRound(t, l, 3, []int{-10}, []int{7})

	var sum [2]int
	for _, rs := range l.Rounds() {
		sum[0] += rs.Points[0]
		sum[1] += rs.Points[1]
	}
	assert.Equal(t, sum, l.Totals())
	assert.Equal(t, [2]int{18, 24}, l.Totals())
}

func TestLedgerEvaluate(t *testing.T) {
	tt := []struct {
		name        string
		totals      [2]int
		policy      TiePolicy
		suddenDeath bool
		want        Outcome
	}{
		{"below threshold", [2]int{70, 74}, TieSuddenDeath, false, Outcome{}},
		{"player one over", [2]int{80, 60}, TieSuddenDeath, false, Outcome{Decided: true, Winner: 1}},
		{"player two over", [2]int{60, 75}, TieSuddenDeath, false, Outcome{Decided: true, Winner: 2}},
		{"both over, higher wins", [2]int{77, 90}, TieSuddenDeath, false, Outcome{Decided: true, Winner: 2}},
		{"level at threshold", [2]int{75, 75}, TieSuddenDeath, false, Outcome{SuddenDeath: true}},
		{"level below threshold", [2]int{40, 40}, TieSuddenDeath, false, Outcome{}},
		{"declared tie", [2]int{75, 75}, TieDeclare, false, Outcome{Decided: true, Tie: true}},
		{"sudden death decided", [2]int{85, 82}, TieSuddenDeath, true, Outcome{Decided: true, Winner: 1}},
		{"sudden death still level", [2]int{85, 85}, TieSuddenDeath, true, Outcome{SuddenDeath: true}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			l := NewScoreLedger()
			closeRound(t, l, 1, []int{tc.totals[0]}, []int{tc.totals[1]})
			assert.Equal(t, tc.want, l.Evaluate(75, tc.policy, tc.suddenDeath))
		})
	}
}

func TestParseTiePolicy(t *testing.T) {
	p, err := ParseTiePolicy("")
	require.NoError(t, err)
	assert.Equal(t, TieSuddenDeath, p)

	p, err = ParseTiePolicy("declare")
	require.NoError(t, err)
	assert.Equal(t, TieDeclare, p)

	_, err = ParseTiePolicy("coin_flip")
	assert.Error(t, err)
}
