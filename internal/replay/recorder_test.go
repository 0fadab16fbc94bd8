package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderRoundTrip(t *testing.T) {
	rec := NewRecorder("match_1")
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, rec.Append("shot", at, map[string]any{"disc": 0, "power": 0.5}))
	require.NoError(t, rec.Append("round_scored", at.Add(time.Second), map[string]any{"points": []int{15, 0}}))
	assert.Equal(t, 2, rec.Len())

	blob, err := rec.Finish()
	require.NoError(t, err)
	assert.NotEmpty(t, blob)

	records, err := Decode(blob)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Seq)
	assert.Equal(t, "shot", records[0].Type)
	assert.Equal(t, at, records[0].CapturedAt)
	assert.Equal(t, "round_scored", records[1].Type)

	var payload struct {
		Points []int `json:"points"`
	}
	require.NoError(t, json.Unmarshal(records[1].Payload, &payload))
	assert.Equal(t, []int{15, 0}, payload.Points)
}

func TestRecorderRejectsAppendAfterFinish(t *testing.T) {
	rec := NewRecorder("m")
	_, err := rec.Finish()
	require.NoError(t, err)

	assert.ErrorIs(t, rec.Append("shot", time.Now(), nil), ErrClosed)

	rec.Reset()
	assert.NoError(t, rec.Append("shot", time.Now(), nil))
	assert.Equal(t, 1, rec.Len())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not zstd"))
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	blob, err := Encode([]Record{{Seq: 1, Type: "match_started", Payload: json.RawMessage(`{}`)}})
	require.NoError(t, err)

	path, err := WriteFile(dir, "match/../1", blob, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "match1-20240102T030405Z.jsonl.zst"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := Decode(data)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
