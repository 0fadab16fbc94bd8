package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/redis/go-redis/v9"
)

const snapshotTTL = time.Hour

var ErrSnapshotNotFound = errors.New("match snapshot not found")

func snapshotKey(token string) string {
	return "match:" + token + ":state"
}

// encodeSnapshot is the Redis blob format: snappy-compressed JSON.
func encodeSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, data), nil
}

func decodeSnapshot(blob []byte) (*Snapshot, error) {
	data, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// SaveSnapshot writes the match's public state to Redis so it survives a
// restart of this instance and can be served to spectators.
func (mm *MatchManager) SaveSnapshot(ctx context.Context, s Snapshot) error {
	if mm.rdb == nil {
		return nil
	}
	blob, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	return mm.rdb.SetEx(ctx, snapshotKey(s.Token), blob, snapshotTTL).Err()
}

// LoadSnapshot reads the last saved state of a match.
func (mm *MatchManager) LoadSnapshot(ctx context.Context, token string) (*Snapshot, error) {
	if mm.rdb == nil {
		return nil, ErrSnapshotNotFound
	}
	blob, err := mm.rdb.Get(ctx, snapshotKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(blob)
}

// CreateSession inserts the durable row for a match and returns its id.
func (mm *MatchManager) CreateSession(m *Match) (int, error) {
	if mm.db == nil {
		return 0, nil
	}
	var p2 sql.NullInt64
	if id := m.Players[1].DBPlayerID; id > 0 {
		p2 = sql.NullInt64{Int64: int64(id), Valid: true}
	}
	var sessionID int
	err := mm.db.QueryRow(`
		INSERT INTO match_sessions (match_token, player1_id, player2_id, vs_ai, status, created_at, expiry_time)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6)
		RETURNING id
	`, m.Token, m.Players[0].DBPlayerID, p2, m.Players[1].AI, string(StatusWaiting), m.ExpiresAt).Scan(&sessionID)
	if err != nil {
		return 0, fmt.Errorf("create match session: %w", err)
	}
	return sessionID, nil
}

// MarkSessionStarted moves the session row to IN_PROGRESS.
func (mm *MatchManager) MarkSessionStarted(sessionID int, startedAt time.Time) error {
	if mm.db == nil || sessionID == 0 {
		return nil
	}
	_, err := mm.db.Exec(`UPDATE match_sessions SET status=$1, started_at = COALESCE(started_at, $2) WHERE id=$3`,
		string(StatusInProgress), startedAt, sessionID)
	if err != nil {
		logging.Log.Errorf("[DB] Failed to mark session %d as IN_PROGRESS: %v", sessionID, err)
	}
	return err
}

// MarkSessionCancelled records a match that ended without a result.
func (mm *MatchManager) MarkSessionCancelled(sessionID int) {
	if mm.db == nil || sessionID == 0 {
		return
	}
	if _, err := mm.db.Exec(`UPDATE match_sessions SET status=$1, completed_at=NOW() WHERE id=$2`, string(StatusCancelled), sessionID); err != nil {
		logging.Log.Errorf("[DB] Failed to cancel session %d: %v", sessionID, err)
	}
}

// ResetSession clears the per-round history of a session before a rematch.
func (mm *MatchManager) ResetSession(sessionID int) {
	if mm.db == nil || sessionID == 0 {
		return
	}
	tx, err := mm.db.Beginx()
	if err != nil {
		logging.Log.Errorf("[DB] Failed to begin reset tx for session %d: %v", sessionID, err)
		return
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM match_shots WHERE session_id=$1`,
		`DELETE FROM match_rounds WHERE session_id=$1`,
		`DELETE FROM match_replays WHERE session_id=$1`,
	} {
		if _, err := tx.Exec(q, sessionID); err != nil {
			logging.Log.Errorf("[DB] Failed to reset session %d: %v", sessionID, err)
			return
		}
	}
	if _, err := tx.Exec(`UPDATE match_sessions SET status=$1, winner_id=NULL, win_type=NULL, player1_total=0, player2_total=0, rounds_played=0, completed_at=NULL WHERE id=$2`,
		string(StatusInProgress), sessionID); err != nil {
		logging.Log.Errorf("[DB] Failed to reset session %d: %v", sessionID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		logging.Log.Errorf("[DB] Failed to commit reset for session %d: %v", sessionID, err)
	}
}

// RecordShot stores one launch in the shot log.
func (mm *MatchManager) RecordShot(sessionID, playerDBID, round, shotNumber int, shot Shot) {
	if mm.db == nil || sessionID == 0 {
		return
	}
	shotData, err := json.Marshal(shot)
	if err != nil {
		logging.Log.Errorf("[DB] Failed to marshal shot for session %d: %v", sessionID, err)
		return
	}
	var player sql.NullInt64
	if playerDBID > 0 {
		player = sql.NullInt64{Int64: int64(playerDBID), Valid: true}
	}
	_, err = mm.db.Exec(`
		INSERT INTO match_shots (session_id, player_id, shot_number, round_number, disc_id, shot_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, NOW())
	`, sessionID, player, shotNumber, round, int(shot.Disc), string(shotData))
	if err != nil {
		logging.Log.Errorf("[DB] Failed to record shot %d for session %d: %v", shotNumber, sessionID, err)
	}
}

// SaveRound stores a closed round.
func (mm *MatchManager) SaveRound(sessionID int, rs RoundScore) {
	if mm.db == nil || sessionID == 0 {
		return
	}
	_, err := mm.db.Exec(`
		INSERT INTO match_rounds (session_id, round_number, player1_points, player2_points, sudden_death, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (session_id, round_number) DO UPDATE SET
			player1_points = EXCLUDED.player1_points,
			player2_points = EXCLUDED.player2_points,
			sudden_death = EXCLUDED.sudden_death
	`, sessionID, rs.Round, rs.Points[0], rs.Points[1], rs.SuddenDeath)
	if err != nil {
		logging.Log.Errorf("[DB] Failed to save round %d for session %d: %v", rs.Round, sessionID, err)
	}
}

// finalRecord carries what SaveFinalResult needs, copied out of the match.
type finalRecord struct {
	SessionID  int
	DBPlayers  [2]int
	Result     Result
	StartedAt  *time.Time
	ReplayBlob []byte
	EventCount int
}

// SaveFinalResult closes the session row and folds the result into player
// stats in one transaction.
func (mm *MatchManager) SaveFinalResult(rec finalRecord) error {
	if mm.db == nil || rec.SessionID == 0 {
		return nil
	}
	res := rec.Result
	logging.Log.Infof("[DB] Saving final result for session=%d winner=%d type=%s", rec.SessionID, res.Winner, res.WinType)

	tx, err := mm.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin final tx: %w", err)
	}
	defer tx.Rollback()

	var winner sql.NullInt64
	if res.Winner > 0 && rec.DBPlayers[res.Winner-1] > 0 {
		winner = sql.NullInt64{Int64: int64(rec.DBPlayers[res.Winner-1]), Valid: true}
	}
	var startedAt interface{}
	if rec.StartedAt != nil {
		startedAt = *rec.StartedAt
	}
	if _, err := tx.Exec(`
		UPDATE match_sessions
		SET status=$1, winner_id=$2, win_type=$3, player1_total=$4, player2_total=$5, rounds_played=$6,
			started_at = COALESCE(started_at, $7), completed_at=$8
		WHERE id=$9
	`, string(StatusCompleted), winner, res.WinType, res.Totals[0], res.Totals[1], res.Rounds, startedAt, res.CompletedAt, rec.SessionID); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	for i, pid := range rec.DBPlayers {
		if pid <= 0 {
			continue
		}
		won, tied := 0, 0
		switch {
		case res.Tie:
			tied = 1
		case res.Winner == i+1:
			won = 1
		}
		if _, err := tx.Exec(`
			UPDATE players
			SET total_games_played = total_games_played + 1,
				total_games_won = total_games_won + $1,
				total_games_tied = total_games_tied + $2,
				total_points = total_points + $3,
				best_total = GREATEST(best_total, $3),
				last_active = NOW()
			WHERE id = $4
		`, won, tied, res.Totals[i], pid); err != nil {
			return fmt.Errorf("update stats for player %d: %w", pid, err)
		}
	}

	if len(rec.ReplayBlob) > 0 {
		if _, err := tx.Exec(`
			INSERT INTO match_replays (session_id, data, event_count, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (session_id) DO UPDATE SET data = EXCLUDED.data, event_count = EXCLUDED.event_count, created_at = NOW()
		`, rec.SessionID, rec.ReplayBlob, rec.EventCount); err != nil {
			return fmt.Errorf("store replay: %w", err)
		}
	}

	return tx.Commit()
}

// LoadReplay returns the compressed archive stored for a match token.
func (mm *MatchManager) LoadReplay(token string) ([]byte, error) {
	if mm.db == nil {
		return nil, sql.ErrNoRows
	}
	var data []byte
	err := mm.db.Get(&data, `
		SELECT r.data FROM match_replays r
		JOIN match_sessions s ON s.id = r.session_id
		WHERE s.match_token = $1
	`, token)
	return data, err
}
