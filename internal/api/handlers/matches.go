package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playshuffle/backend/internal/game"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/playshuffle/backend/internal/replay"
)

type seatResponse struct {
	MatchID     string `json:"match_id"`
	MatchToken  string `json:"match_token"`
	PlayerToken string `json:"player_token"`
	PlayerID    string `json:"player_id"`
	Number      int    `json:"number"`
	WSPath      string `json:"ws_path"`
}

func seatFor(m *game.Match, playerID string) seatResponse {
	s := seatResponse{MatchID: m.ID, MatchToken: m.Token, PlayerID: playerID}
	for _, p := range m.Players {
		if p.ID == playerID {
			s.PlayerToken = p.PlayerToken
			s.Number = p.Number
		}
	}
	s.WSPath = "/api/v1/matches/" + m.Token + "/ws?pt=" + s.PlayerToken
	return s
}

// CreateAIMatch seats the authenticated player against the computer.
func CreateAIMatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireManager(c) {
			return
		}
		me := currentPlayer(c)
		m, err := game.Manager.CreateAIMatch(me)
		if errors.Is(err, game.ErrPlayerBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			logging.Log.Errorf("[API] Failed to create AI match for %s: %v", me.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create match"})
			return
		}
		c.JSON(http.StatusCreated, seatFor(m, me.ID))
	}
}

// GetMatchState returns a match's public snapshot. A player token in pt
// personalises it. Matches no longer in memory are served from the last
// Redis snapshot.
func GetMatchState() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireManager(c) {
			return
		}
		token := c.Param("token")

		m, err := game.Manager.GetMatchByToken(token)
		if err != nil {
			snap, err := game.Manager.LoadSnapshot(c.Request.Context(), token)
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
				return
			}
			c.JSON(http.StatusOK, snap)
			return
		}

		if pt := c.Query("pt"); pt != "" {
			p := m.PlayerByToken(pt)
			if p == nil {
				c.JSON(http.StatusForbidden, gin.H{"error": "invalid player token"})
				return
			}
			c.JSON(http.StatusOK, m.StateFor(p.ID))
			return
		}
		c.JSON(http.StatusOK, m.Snapshot())
	}
}

// GetMatchReplay returns the recorded events of a finished match, as JSON or
// as the raw compressed archive with ?format=zst.
func GetMatchReplay() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireManager(c) {
			return
		}
		token := c.Param("token")
		data, err := game.Manager.Replay(token)
		if errors.Is(err, game.ErrNotInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "match is not finished"})
			return
		}
		if err != nil || len(data) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "replay not found"})
			return
		}

		if c.Query("format") == "zst" {
			c.Header("Content-Disposition", "attachment; filename="+token+".jsonl.zst")
			c.Data(http.StatusOK, "application/zstd", data)
			return
		}
		records, err := replay.Decode(data)
		if err != nil {
			logging.Log.Errorf("[API] Corrupt replay for %s: %v", token, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "replay unreadable"})
			return
		}
		c.Header("X-Replay-Events", itoa(len(records)))
		c.JSON(http.StatusOK, gin.H{"match_token": token, "events": records})
	}
}

// GetRules returns the rules new matches use, including the zone table.
func GetRules() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireManager(c) {
			return
		}
		cfg := game.Manager.Config()
		c.JSON(http.StatusOK, gin.H{
			"rules":        game.Manager.Rules(),
			"physics_mode": cfg.PhysicsMode,
			"tick_hz":      cfg.TickHz,
		})
	}
}
