package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playshuffle/backend/internal/admin"
	"github.com/playshuffle/backend/internal/game"
	"github.com/playshuffle/backend/internal/logging"
)

// GetAdminLiveMatches lists every match held in memory.
func GetAdminLiveMatches() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireManager(c) {
			return
		}
		matches := game.Manager.ListMatches()
		c.JSON(http.StatusOK, gin.H{"matches": matches, "total": len(matches)})
	}
}

// GetAdminMatches returns a paginated list of recorded matches with filters.
func GetAdminMatches(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDB(c, db) {
			return
		}
		status := c.DefaultQuery("status", "all")
		limit, offset := pagination(c, 25, 200)

		type matchRow struct {
			ID           int     `db:"id" json:"id"`
			MatchToken   string  `db:"match_token" json:"match_token"`
			Player1Name  *string `db:"player1_name" json:"player1_name"`
			Player2Name  *string `db:"player2_name" json:"player2_name"`
			Player1ID    int     `db:"player1_id" json:"player1_id"`
			Player2ID    *int    `db:"player2_id" json:"player2_id"`
			VsAI         bool    `db:"vs_ai" json:"vs_ai"`
			Status       string  `db:"status" json:"status"`
			WinnerID     *int    `db:"winner_id" json:"winner_id"`
			WinType      *string `db:"win_type" json:"win_type"`
			Player1Total int     `db:"player1_total" json:"player1_total"`
			Player2Total int     `db:"player2_total" json:"player2_total"`
			RoundsPlayed int     `db:"rounds_played" json:"rounds_played"`
			CreatedAt    string  `db:"created_at" json:"created_at"`
			CompletedAt  *string `db:"completed_at" json:"completed_at"`
			TotalCount   int     `db:"total_count" json:"-"`
		}

		query := `
			SELECT ms.id, ms.match_token,
				p1.display_name as player1_name,
				p2.display_name as player2_name,
				ms.player1_id, ms.player2_id, ms.vs_ai,
				ms.status, ms.winner_id, ms.win_type,
				ms.player1_total, ms.player2_total, ms.rounds_played,
				to_char(ms.created_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as created_at,
				to_char(ms.completed_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as completed_at,
				COUNT(*) OVER() as total_count
			FROM match_sessions ms
			LEFT JOIN players p1 ON ms.player1_id = p1.id
			LEFT JOIN players p2 ON ms.player2_id = p2.id
			WHERE ($1 = 'all'
				OR ($1 = 'waiting' AND ms.status = 'WAITING')
				OR ($1 = 'active' AND ms.status = 'IN_PROGRESS')
				OR ($1 = 'completed' AND ms.status = 'COMPLETED')
				OR ($1 = 'cancelled' AND ms.status = 'CANCELLED'))
			ORDER BY ms.created_at DESC
			LIMIT $2 OFFSET $3
		`

		var rows []matchRow
		if err := db.Select(&rows, query, status, limit, offset); err != nil {
			logging.Log.Errorf("[ADMIN] Failed to fetch matches: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch matches"})
			return
		}

		total := 0
		if len(rows) > 0 {
			total = rows[0].TotalCount
		}
		c.JSON(http.StatusOK, gin.H{"matches": rows, "total": total, "limit": limit, "offset": offset})
	}
}

// GetAdminMatchDetail returns a recorded match with its rounds and shots.
func GetAdminMatchDetail(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDB(c, db) {
			return
		}
		id := c.Param("id")

		type matchDetail struct {
			ID           int     `db:"id" json:"id"`
			MatchToken   string  `db:"match_token" json:"match_token"`
			Player1ID    int     `db:"player1_id" json:"player1_id"`
			Player2ID    *int    `db:"player2_id" json:"player2_id"`
			Player1Name  *string `db:"player1_name" json:"player1_name"`
			Player2Name  *string `db:"player2_name" json:"player2_name"`
			VsAI         bool    `db:"vs_ai" json:"vs_ai"`
			Status       string  `db:"status" json:"status"`
			WinnerID     *int    `db:"winner_id" json:"winner_id"`
			WinType      *string `db:"win_type" json:"win_type"`
			Player1Total int     `db:"player1_total" json:"player1_total"`
			Player2Total int     `db:"player2_total" json:"player2_total"`
			RoundsPlayed int     `db:"rounds_played" json:"rounds_played"`
			CreatedAt    string  `db:"created_at" json:"created_at"`
			StartedAt    *string `db:"started_at" json:"started_at"`
			CompletedAt  *string `db:"completed_at" json:"completed_at"`
			ExpiryTime   string  `db:"expiry_time" json:"expiry_time"`
		}

		var match matchDetail
		err := db.Get(&match, `
			SELECT ms.id, ms.match_token,
				ms.player1_id, ms.player2_id,
				p1.display_name as player1_name,
				p2.display_name as player2_name,
				ms.vs_ai, ms.status, ms.winner_id, ms.win_type,
				ms.player1_total, ms.player2_total, ms.rounds_played,
				to_char(ms.created_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as created_at,
				to_char(ms.started_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as started_at,
				to_char(ms.completed_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as completed_at,
				to_char(ms.expiry_time, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as expiry_time
			FROM match_sessions ms
			LEFT JOIN players p1 ON ms.player1_id = p1.id
			LEFT JOIN players p2 ON ms.player2_id = p2.id
			WHERE ms.id = $1
		`, id)
		if err != nil {
			logging.Log.Warnf("[ADMIN] Match %s not found: %v", id, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
			return
		}

		type roundRow struct {
			RoundNumber   int  `db:"round_number" json:"round_number"`
			Player1Points int  `db:"player1_points" json:"player1_points"`
			Player2Points int  `db:"player2_points" json:"player2_points"`
			SuddenDeath   bool `db:"sudden_death" json:"sudden_death"`
		}
		var rounds []roundRow
		_ = db.Select(&rounds, `
			SELECT round_number, player1_points, player2_points, sudden_death
			FROM match_rounds WHERE session_id = $1
			ORDER BY round_number ASC
		`, id)

		type shotRow struct {
			ShotNumber  int     `db:"shot_number" json:"shot_number"`
			RoundNumber int     `db:"round_number" json:"round_number"`
			PlayerID    *int    `db:"player_id" json:"player_id"`
			PlayerName  *string `db:"player_name" json:"player_name"`
			DiscID      int     `db:"disc_id" json:"disc_id"`
			ShotData    string  `db:"shot_data" json:"shot_data"`
			CreatedAt   string  `db:"created_at" json:"created_at"`
		}
		var shots []shotRow
		_ = db.Select(&shots, `
			SELECT s.shot_number, s.round_number, s.player_id,
				p.display_name as player_name, s.disc_id, s.shot_data::text as shot_data,
				to_char(s.created_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as created_at
			FROM match_shots s
			LEFT JOIN players p ON s.player_id = p.id
			WHERE s.session_id = $1
			ORDER BY s.shot_number ASC
		`, id)

		c.JSON(http.StatusOK, gin.H{"match": match, "rounds": rounds, "shots": shots})
	}
}

// AdminEndMatch removes a stuck match from memory, cancelling it if it was
// still being played.
func AdminEndMatch(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireManager(c) {
			return
		}
		username := c.GetString("admin_username")
		token := c.Param("token")

		var req struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Reason is required"})
			return
		}

		details := map[string]interface{}{"match_token": token, "reason": req.Reason}
		m, err := game.Manager.GetMatchByToken(token)
		if err == nil {
			err = game.Manager.EndMatch(m.ID)
		}
		if errors.Is(err, game.ErrMatchNotFound) {
			admin.LogAdminAction(db, username, c.ClientIP(), c.FullPath(), "end_match", details, false)
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
			return
		}
		if err != nil {
			logging.Log.Errorf("[ADMIN] Failed to end match %s: %v", token, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end match"})
			return
		}

		details["status"] = m.Status()
		logging.Log.Infof("[ADMIN] %s ended match %s: %s", username, token, req.Reason)
		admin.LogAdminAction(db, username, c.ClientIP(), c.FullPath(), "end_match", details, true)
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": m.Status()})
	}
}
