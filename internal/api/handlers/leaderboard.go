package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/playshuffle/backend/internal/models"
)

// GetLeaderboard ranks players by wins, then win rate, then best total.
func GetLeaderboard(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDB(c, db) {
			return
		}
		limit, offset := pagination(c, 20, 100)

		var rows []models.LeaderboardEntry
		err := db.Select(&rows, `
			SELECT id, display_name, total_games_played, total_games_won, best_total,
				CASE WHEN total_games_played = 0 THEN 0
					ELSE ROUND(total_games_won::numeric / total_games_played, 3)::float8
				END AS win_rate
			FROM players
			WHERE total_games_played > 0 AND NOT is_blocked
			ORDER BY total_games_won DESC, win_rate DESC, best_total DESC, id ASC
			LIMIT $1 OFFSET $2
		`, limit, offset)
		if err != nil {
			logging.Log.Errorf("[API] Failed to fetch leaderboard: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"players": rows, "limit": limit, "offset": offset})
	}
}

// GetPlayerStats returns one player's lifetime stats and recent matches.
func GetPlayerStats(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDB(c, db) {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid player id"})
			return
		}

		var p models.Player
		err = db.Get(&p, `SELECT * FROM players WHERE id = $1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
			return
		}
		if err != nil {
			logging.Log.Errorf("[API] Failed to load player %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		var recent []models.MatchSession
		_ = db.Select(&recent, `
			SELECT * FROM match_sessions
			WHERE (player1_id = $1 OR player2_id = $1) AND status = 'COMPLETED'
			ORDER BY completed_at DESC
			LIMIT 10
		`, id)

		winRate := 0.0
		if p.TotalGamesPlayed > 0 {
			winRate = float64(p.TotalGamesWon) / float64(p.TotalGamesPlayed)
		}
		c.JSON(http.StatusOK, gin.H{
			"player":         p,
			"win_rate":       winRate,
			"recent_matches": recent,
		})
	}
}
