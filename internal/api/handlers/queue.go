package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/game"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/playshuffle/backend/internal/models"
	uuid "github.com/satori/go.uuid"
)

func queueResponse(q models.MatchmakingQueue) gin.H {
	resp := gin.H{
		"ticket":     q.Ticket,
		"status":     q.Status,
		"created_at": q.CreatedAt,
		"expires_at": q.ExpiresAt,
	}
	if q.Status == game.QueueMatched && q.MatchToken.Valid {
		resp["match_token"] = q.MatchToken.String
		resp["player_token"] = q.PlayerToken.String
		resp["ws_path"] = "/api/v1/matches/" + q.MatchToken.String + "/ws?pt=" + q.PlayerToken.String
	}
	return resp
}

// JoinQueue puts the authenticated player in the matchmaking queue. A player
// already waiting gets their existing ticket back.
func JoinQueue(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDB(c, db) {
			return
		}
		me := currentPlayer(c)
		if me.DBPlayerID == 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": "guest sessions cannot queue"})
			return
		}
		if game.Manager != nil {
			if m, err := game.Manager.GetMatchForPlayer(me.ID); err == nil {
				if s := m.Status(); s == game.StatusWaiting || s == game.StatusInProgress {
					c.JSON(http.StatusConflict, gin.H{"error": "already in a match", "match_token": m.Token})
					return
				}
			}
		}

		var existing models.MatchmakingQueue
		err := db.Get(&existing, `
			SELECT * FROM matchmaking_queue
			WHERE player_id = $1 AND status = $2 AND expires_at > NOW()
			ORDER BY created_at DESC LIMIT 1
		`, me.DBPlayerID, game.QueueQueued)
		if err == nil {
			c.JSON(http.StatusOK, queueResponse(existing))
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Log.Errorf("[QUEUE] Failed to look up ticket for player %d: %v", me.DBPlayerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		expiry := time.Duration(cfg.QueueExpiryMinutes) * time.Minute
		if expiry <= 0 {
			expiry = 10 * time.Minute
		}
		var q models.MatchmakingQueue
		err = db.Get(&q, `
			INSERT INTO matchmaking_queue (player_id, ticket, status, expires_at)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		`, me.DBPlayerID, uuid.NewV4().String(), game.QueueQueued, time.Now().Add(expiry))
		if err != nil {
			logging.Log.Errorf("[QUEUE] Failed to queue player %d: %v", me.DBPlayerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		logging.Log.Infof("[QUEUE] Player %d queued with ticket %s", me.DBPlayerID, q.Ticket)
		c.JSON(http.StatusCreated, queueResponse(q))
	}
}

// GetQueueTicket reports a ticket's state, with the seat once matched.
func GetQueueTicket(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDB(c, db) {
			return
		}
		var q models.MatchmakingQueue
		err := db.Get(&q, `SELECT * FROM matchmaking_queue WHERE ticket = $1 AND player_id = $2`,
			c.Param("ticket"), c.GetInt("player_id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		if err != nil {
			logging.Log.Errorf("[QUEUE] Failed to load ticket: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, queueResponse(q))
	}
}

// LeaveQueue cancels a ticket that has not been matched yet.
func LeaveQueue(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDB(c, db) {
			return
		}
		res, err := db.Exec(`
			UPDATE matchmaking_queue SET status = $1
			WHERE ticket = $2 AND player_id = $3 AND status = $4
		`, game.QueueCancelled, c.Param("ticket"), c.GetInt("player_id"), game.QueueQueued)
		if err != nil {
			logging.Log.Errorf("[QUEUE] Failed to cancel ticket: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "ticket is not waiting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
