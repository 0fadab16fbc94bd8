package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/game"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/playshuffle/backend/internal/models"
)

const maxDisplayName = 32

// PlayerClaims identifies a player session. PlayerID is 0 for guests that
// have no stored record.
type PlayerClaims struct {
	PlayerID    int    `json:"player_id"`
	PlayerKey   string `json:"player_key"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

func issuePlayerToken(cfg *config.Config, claims PlayerClaims) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(cfg.SessionTTL())
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	claims.Subject = claims.PlayerKey
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	return signed, exp, err
}

func cleanDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxDisplayName {
		name = name[:maxDisplayName]
	}
	return name
}

func randomSuffix() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GuestLogin creates a player record and returns a session token for it.
func GuestLogin(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DisplayName string `json:"display_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		name := cleanDisplayName(req.DisplayName)
		if name == "" {
			name = "Player " + strings.ToUpper(randomSuffix()[:4])
		}

		claims := PlayerClaims{DisplayName: name}
		if db != nil {
			if err := db.Get(&claims.PlayerID, `INSERT INTO players (display_name, created_at, last_active) VALUES ($1, NOW(), NOW()) RETURNING id`, name); err != nil {
				logging.Log.Errorf("[AUTH] Failed to create player: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			claims.PlayerKey = game.PlayerKey(claims.PlayerID)
		} else {
			claims.PlayerKey = "guest_" + randomSuffix()
		}

		signed, exp, err := issuePlayerToken(cfg, claims)
		if err != nil {
			logging.Log.Errorf("[AUTH] Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":      signed,
			"expires_at": exp,
			"player": gin.H{
				"id":           claims.PlayerID,
				"key":          claims.PlayerKey,
				"display_name": claims.DisplayName,
			},
		})
	}
}

// AuthMiddleware validates the bearer JWT and sets player_id, player_key and
// display_name in the context.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		var claims PlayerClaims
		parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !parsed.Valid || claims.PlayerKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("player_id", claims.PlayerID)
		c.Set("player_key", claims.PlayerKey)
		c.Set("display_name", claims.DisplayName)
		c.Next()
	}
}

// currentPlayer is the match seat spec for the authenticated player.
func currentPlayer(c *gin.Context) game.PlayerSpec {
	return game.PlayerSpec{
		ID:          c.GetString("player_key"),
		DisplayName: c.GetString("display_name"),
		DBPlayerID:  c.GetInt("player_id"),
	}
}

// GetMe returns the authenticated player's profile and stats.
func GetMe(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		me := currentPlayer(c)
		resp := gin.H{
			"id":           me.DBPlayerID,
			"key":          me.ID,
			"display_name": me.DisplayName,
		}
		if game.Manager != nil {
			if m, err := game.Manager.GetMatchForPlayer(me.ID); err == nil {
				resp["match_token"] = m.Token
				resp["match_status"] = m.Status()
			}
		}
		if db != nil && me.DBPlayerID > 0 {
			var p models.Player
			if err := db.Get(&p, `SELECT * FROM players WHERE id=$1`, me.DBPlayerID); err == nil {
				resp["display_name"] = p.DisplayName
				resp["stats"] = p
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// UpdateDisplayName renames the authenticated player.
func UpdateDisplayName(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DisplayName string `json:"display_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display_name required"})
			return
		}
		name := cleanDisplayName(req.DisplayName)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display_name required"})
			return
		}
		if !requireDB(c, db) {
			return
		}
		id := c.GetInt("player_id")
		if id == 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": "guest sessions cannot be renamed"})
			return
		}
		if _, err := db.Exec(`UPDATE players SET display_name=$1 WHERE id=$2`, name, id); err != nil {
			logging.Log.Errorf("[AUTH] Failed to rename player %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"display_name": name})
	}
}
