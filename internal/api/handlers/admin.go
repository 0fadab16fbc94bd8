package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playshuffle/backend/internal/admin"
	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/game"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/redis/go-redis/v9"
)

const adminCookieName = "admin_session"

// revokedSessionPrefix marks admin session IDs that were logged out before
// they expired.
const revokedSessionPrefix = "admin_revoked:"

// AdminLogin checks the username and access token and issues a signed
// session, returned in the body and as an HTTP-only cookie.
func AdminLogin(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDB(c, db) {
			return
		}
		var req struct {
			Username string `json:"username" binding:"required"`
			Token    string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		username := strings.TrimSpace(req.Username)
		acc, err := admin.ValidateAdminCredentials(db, username, strings.TrimSpace(req.Token))
		if err != nil {
			logging.Log.Warnf("[ADMIN] Login failed for %s: %v", username, err)
			admin.LogAdminAction(db, username, c.ClientIP(), c.FullPath(), "login", map[string]interface{}{"username": username}, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		token, exp, err := admin.IssueSession(cfg.JWTSecret, acc, cfg.AdminSessionTTL())
		if err != nil {
			logging.Log.Errorf("[ADMIN] Failed to sign session for %s: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookieName, token, int(cfg.AdminSessionTTL().Seconds()), "/api/v1/admin", "", cfg.IsProduction(), true)

		admin.LogAdminAction(db, username, c.ClientIP(), c.FullPath(), "login", map[string]interface{}{"username": username}, true)
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": exp,
			"username":   acc.Username,
			"roles":      acc.Roles,
		})
	}
}

func adminToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	token, _ := c.Cookie(adminCookieName)
	return token
}

// AdminSessionMiddleware validates the admin session from the bearer header
// or the session cookie.
func AdminSessionMiddleware(rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := adminToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		claims, err := admin.ParseSession(cfg.JWTSecret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		if rdb != nil && claims.ID != "" {
			n, err := rdb.Exists(c.Request.Context(), revokedSessionPrefix+claims.ID).Result()
			if err != nil {
				logging.Log.Warnf("[ADMIN] Revocation check failed: %v", err)
			} else if n > 0 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session revoked"})
				return
			}
		}

		c.Set("admin_username", claims.Username)
		c.Set("admin_claims", claims)
		c.Next()
	}
}

// RequireAdminRole rejects sessions that lack role.
func RequireAdminRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.Get("admin_claims")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		if !claims.(*admin.SessionClaims).HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
			return
		}
		c.Next()
	}
}

// AdminLogout revokes the current session until it would have expired and
// clears the cookie.
func AdminLogout(rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := admin.ParseSession(cfg.JWTSecret, adminToken(c)); err == nil && rdb != nil && claims.ID != "" {
			ttl := time.Until(claims.ExpiresAt.Time)
			if ttl > 0 {
				ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
				defer cancel()
				if err := rdb.Set(ctx, revokedSessionPrefix+claims.ID, claims.Username, ttl).Err(); err != nil {
					logging.Log.Warnf("[ADMIN] Failed to revoke session for %s: %v", claims.Username, err)
				}
			}
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookieName, "", -1, "/api/v1/admin", "", cfg.IsProduction(), true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AdminMe returns the current admin session info.
func AdminMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get("admin_claims")
		claims, ok := v.(*admin.SessionClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"username":   claims.Username,
			"roles":      claims.Roles,
			"expires_at": claims.ExpiresAt.Time,
		})
	}
}

// GetAdminStats returns platform-wide statistics.
func GetAdminStats(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := gin.H{"active_matches": 0}
		if game.Manager != nil {
			stats["active_matches"] = game.Manager.ActiveMatchCount()
		}
		if db == nil {
			c.JSON(http.StatusOK, stats)
			return
		}

		var matchStats struct {
			Total     int `db:"total"`
			Completed int `db:"completed"`
			Cancelled int `db:"cancelled"`
			VsAI      int `db:"vs_ai"`
		}
		err := db.Get(&matchStats, `
			SELECT COUNT(*) as total,
				COUNT(*) FILTER (WHERE status = 'COMPLETED') as completed,
				COUNT(*) FILTER (WHERE status = 'CANCELLED') as cancelled,
				COUNT(*) FILTER (WHERE vs_ai) as vs_ai
			FROM match_sessions
		`)
		if err != nil {
			logging.Log.Errorf("[ADMIN] Failed to fetch match stats: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
			return
		}

		var players int
		if err := db.Get(&players, `SELECT COUNT(*) FROM players`); err != nil {
			logging.Log.Warnf("[ADMIN] Failed to count players: %v", err)
		}

		var queued int
		_ = db.Get(&queued, `SELECT COUNT(*) FROM matchmaking_queue WHERE status = 'queued'`)

		stats["matches"] = gin.H{
			"total":     matchStats.Total,
			"completed": matchStats.Completed,
			"cancelled": matchStats.Cancelled,
			"vs_ai":     matchStats.VsAI,
		}
		stats["players"] = players
		stats["queued"] = queued
		c.JSON(http.StatusOK, stats)
	}
}
