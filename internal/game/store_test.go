package game

import (
	"context"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotBlobRoundTrip(t *testing.T) {
	m, _ := newTestMatch(t, testRules(), false)
	require.NoError(t, m.Start())
	playRound(t, m, []float64{19, 12, 16, 5}, allMisses)

	snap := m.Snapshot()
	blob, err := encodeSnapshot(snap)
	require.NoError(t, err)

	// stored compressed
	_, err = snappy.DecodedLen(blob)
	require.NoError(t, err)

	got, err := decodeSnapshot(blob)
	require.NoError(t, err)
	assert.Equal(t, snap.MatchID, got.MatchID)
	assert.Equal(t, snap.Totals, got.Totals)
	assert.Equal(t, snap.Round, got.Round)
	require.Len(t, got.Rounds, 1)
	assert.Equal(t, [2]int{15, 0}, got.Rounds[0].Points)
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	_, err := decodeSnapshot([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestStoreWithoutBackendsIsNoop(t *testing.T) {
	mm := newTestManager(t)
	ctx := context.Background()

	assert.NoError(t, mm.SaveSnapshot(ctx, Snapshot{Token: "x"}))
	_, err := mm.LoadSnapshot(ctx, "x")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	id, err := mm.CreateSession(&Match{})
	assert.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, mm.SaveFinalResult(finalRecord{SessionID: 1}))
}
