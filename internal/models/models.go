package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Player is a registered (or guest) player and their lifetime stats.
type Player struct {
	ID               int          `db:"id" json:"id"`
	DisplayName      string       `db:"display_name" json:"display_name"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	TotalGamesPlayed int          `db:"total_games_played" json:"total_games_played"`
	TotalGamesWon    int          `db:"total_games_won" json:"total_games_won"`
	TotalGamesTied   int          `db:"total_games_tied" json:"total_games_tied"`
	TotalPoints      int          `db:"total_points" json:"total_points"`
	BestTotal        int          `db:"best_total" json:"best_total"`
	IsBlocked        bool         `db:"is_blocked" json:"is_blocked"`
	LastActive       sql.NullTime `db:"last_active" json:"last_active,omitempty"`
}

// MatchSession is the durable record of one match.
type MatchSession struct {
	ID           int            `db:"id" json:"id"`
	MatchToken   string         `db:"match_token" json:"match_token"`
	Player1ID    int            `db:"player1_id" json:"player1_id"`
	Player2ID    sql.NullInt64  `db:"player2_id" json:"player2_id,omitempty"`
	VsAI         bool           `db:"vs_ai" json:"vs_ai"`
	Status       string         `db:"status" json:"status"`
	WinnerID     sql.NullInt64  `db:"winner_id" json:"winner_id,omitempty"`
	WinType      sql.NullString `db:"win_type" json:"win_type,omitempty"`
	Player1Total int            `db:"player1_total" json:"player1_total"`
	Player2Total int            `db:"player2_total" json:"player2_total"`
	RoundsPlayed int            `db:"rounds_played" json:"rounds_played"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	StartedAt    sql.NullTime   `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
	ExpiryTime   time.Time      `db:"expiry_time" json:"expiry_time"`
}

// MatchRound is one closed round of a match.
type MatchRound struct {
	ID            int       `db:"id" json:"id"`
	SessionID     int       `db:"session_id" json:"session_id"`
	RoundNumber   int       `db:"round_number" json:"round_number"`
	Player1Points int       `db:"player1_points" json:"player1_points"`
	Player2Points int       `db:"player2_points" json:"player2_points"`
	SuddenDeath   bool      `db:"sudden_death" json:"sudden_death"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// MatchShot is a single launched disc.
type MatchShot struct {
	ID          int           `db:"id" json:"id"`
	SessionID   int           `db:"session_id" json:"session_id"`
	PlayerID    sql.NullInt64 `db:"player_id" json:"player_id,omitempty"`
	ShotNumber  int           `db:"shot_number" json:"shot_number"`
	RoundNumber int           `db:"round_number" json:"round_number"`
	DiscID      int           `db:"disc_id" json:"disc_id"`
	ShotData    string        `db:"shot_data" json:"shot_data"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// MatchReplay is the compressed event archive of a finished match.
type MatchReplay struct {
	SessionID  int       `db:"session_id" json:"session_id"`
	Data       []byte    `db:"data" json:"-"`
	EventCount int       `db:"event_count" json:"event_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MatchmakingQueue is a player waiting for an opponent.
type MatchmakingQueue struct {
	ID          int            `db:"id" json:"id"`
	PlayerID    int            `db:"player_id" json:"player_id"`
	Ticket      string         `db:"ticket" json:"ticket"`
	Status      string         `db:"status" json:"status"`
	PlayerToken sql.NullString `db:"player_token" json:"-"`
	MatchToken  sql.NullString `db:"match_token" json:"match_token,omitempty"`
	SessionID   sql.NullInt64  `db:"session_id" json:"session_id,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	MatchedAt   sql.NullTime   `db:"matched_at" json:"matched_at,omitempty"`
	ExpiresAt   time.Time      `db:"expires_at" json:"expires_at"`
}

// LeaderboardEntry is a ranked row of player stats.
type LeaderboardEntry struct {
	PlayerID    int     `db:"id" json:"player_id"`
	DisplayName string  `db:"display_name" json:"display_name"`
	GamesPlayed int     `db:"total_games_played" json:"games_played"`
	GamesWon    int     `db:"total_games_won" json:"games_won"`
	BestTotal   int     `db:"best_total" json:"best_total"`
	WinRate     float64 `db:"win_rate" json:"win_rate"`
}

// AdminAccount is an operator allowed into the admin API.
type AdminAccount struct {
	Username    string         `db:"username" json:"username"`
	DisplayName string         `db:"display_name" json:"display_name"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AdminAudit is one recorded admin action.
type AdminAudit struct {
	ID            int       `db:"id" json:"id"`
	AdminUsername string    `db:"admin_username" json:"admin_username"`
	IP            string    `db:"ip" json:"ip"`
	Route         string    `db:"route" json:"route"`
	Action        string    `db:"action" json:"action"`
	Details       string    `db:"details" json:"details"`
	Success       bool      `db:"success" json:"success"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
