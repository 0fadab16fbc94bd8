package game

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/logging"
)

// Queue ticket states in matchmaking_queue.status.
const (
	QueueQueued    = "queued"
	QueueMatched   = "matched"
	QueueExpired   = "expired"
	QueueCancelled = "cancelled"
	QueueFailed    = "failed"
)

// QueuedPlayer represents a player waiting in the matchmaking queue
type QueuedPlayer struct {
	ID          int    `db:"id"`
	PlayerID    int    `db:"player_id"`
	Ticket      string `db:"ticket"`
	DisplayName string `db:"display_name"`
}

// PlayerKey is the in-match ID of a registered player.
func PlayerKey(dbPlayerID int) string {
	return fmt.Sprintf("p%d", dbPlayerID)
}

// StartMatchmakerWorker runs a background job to match players from the DB queue
func StartMatchmakerWorker(ctx context.Context, db *sqlx.DB, cfg *config.Config) {
	if db == nil {
		logging.Log.Info("[MATCHMAKER] No database; matchmaker not started")
		return
	}
	interval := time.Duration(cfg.MatchmakerPollSeconds) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Log.Infof("[MATCHMAKER] Starting matchmaker worker (poll every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			logging.Log.Info("[MATCHMAKER] Worker stopped")
			return
		case <-ticker.C:
			expireQueuedEntries(ctx, db)
			for tryMatchPair(ctx, db, cfg) {
			}
		}
	}
}

func expireQueuedEntries(ctx context.Context, db *sqlx.DB) {
	res, err := db.ExecContext(ctx, `
		UPDATE matchmaking_queue SET status = $1
		WHERE status = $2 AND expires_at <= NOW()
	`, QueueExpired, QueueQueued)
	if err != nil {
		logging.Log.Errorf("[MATCHMAKER] Failed to expire queue entries: %v", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logging.Log.Infof("[MATCHMAKER] Expired %d queue entries", n)
	}
}

const claimQueuedSQL = `
	SELECT mq.id, mq.player_id, mq.ticket, COALESCE(p.display_name, '') AS display_name
	FROM matchmaking_queue mq
	JOIN players p ON mq.player_id = p.id
	WHERE mq.status = 'queued'
	  AND mq.expires_at > NOW()
	  AND mq.player_id <> $1
	ORDER BY mq.created_at
	FOR UPDATE OF mq SKIP LOCKED
	LIMIT 1
`

// tryMatchPair claims the two oldest tickets of different players and
// creates their match. It reports whether a pair was made.
func tryMatchPair(ctx context.Context, db *sqlx.DB, cfg *config.Config) bool {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		logging.Log.Errorf("[MATCHMAKER] Failed to begin transaction: %v", err)
		return false
	}
	defer tx.Rollback()

	// FOR UPDATE SKIP LOCKED lets several instances claim without blocking
	var first, second QueuedPlayer
	if err := tx.GetContext(ctx, &first, claimQueuedSQL, 0); err != nil {
		return false
	}
	if err := tx.GetContext(ctx, &second, claimQueuedSQL, first.PlayerID); err != nil {
		return false
	}

	matchToken := generateToken(16)
	tokens := [2]string{generateToken(16), generateToken(16)}
	expiry := time.Now().Add(time.Duration(cfg.MatchExpiryMinutes) * time.Minute)

	var sessionID int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO match_sessions (match_token, player1_id, player2_id, vs_ai, status, created_at, expiry_time)
		VALUES ($1, $2, $3, FALSE, $4, NOW(), $5)
		RETURNING id
	`, matchToken, first.PlayerID, second.PlayerID, string(StatusWaiting), expiry).Scan(&sessionID)
	if err != nil {
		logging.Log.Errorf("[MATCHMAKER] Failed to create match session: %v", err)
		return false
	}

	for i, qp := range []QueuedPlayer{first, second} {
		if _, err := tx.ExecContext(ctx, `
			UPDATE matchmaking_queue
			SET status = $1, matched_at = NOW(), session_id = $2, match_token = $3, player_token = $4
			WHERE id = $5
		`, QueueMatched, sessionID, matchToken, tokens[i], qp.ID); err != nil {
			logging.Log.Errorf("[MATCHMAKER] Failed to update queue entry %s: %v", qp.Ticket, err)
			return false
		}
	}

	if err := tx.Commit(); err != nil {
		logging.Log.Errorf("[MATCHMAKER] Failed to commit: %v", err)
		return false
	}

	logging.Log.Infof("[MATCHMAKER] Match created: session=%d token=%s players=[%d,%d]",
		sessionID, matchToken, first.PlayerID, second.PlayerID)

	if Manager == nil {
		return true
	}
	_, err = Manager.CreateMatch(NewMatchRequest{
		Token:     matchToken,
		SessionID: sessionID,
		Players: [2]PlayerSpec{
			{ID: PlayerKey(first.PlayerID), DisplayName: first.DisplayName, DBPlayerID: first.PlayerID, Token: tokens[0]},
			{ID: PlayerKey(second.PlayerID), DisplayName: second.DisplayName, DBPlayerID: second.PlayerID, Token: tokens[1]},
		},
	})
	if err != nil {
		logging.Log.Errorf("[MATCHMAKER] Failed to start match for session %d: %v", sessionID, err)
		if _, err := db.ExecContext(ctx, `UPDATE matchmaking_queue SET status = $1 WHERE session_id = $2`, QueueFailed, sessionID); err != nil {
			logging.Log.Errorf("[MATCHMAKER] Failed to mark session %d tickets failed: %v", sessionID, err)
		}
		Manager.MarkSessionCancelled(sessionID)
	}
	return true
}
