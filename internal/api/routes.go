package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playshuffle/backend/internal/admin"
	"github.com/playshuffle/backend/internal/api/handlers"
	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/playshuffle/backend/internal/middleware"
	"github.com/redis/go-redis/v9"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if !cfg.IsProduction() {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		logging.Log.Info("[DEV MODE] No-cache headers enabled for all routes")
	}

	router.GET("/health", handlers.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/rules", handlers.GetRules())
		v1.POST("/auth/guest", handlers.GuestLogin(db, cfg))

		// Seats authenticate with their player token, not the session JWT.
		v1.GET("/matches/:token", handlers.GetMatchState())
		v1.GET("/matches/:token/replay", handlers.GetMatchReplay())
		v1.GET("/matches/:token/ws", middleware.WebSocketCORSCheck(cfg), handlers.HandleMatchWebSocket())

		v1.GET("/leaderboard", handlers.GetLeaderboard(db))
		v1.GET("/players/:id/stats", handlers.GetPlayerStats(db))

		authed := v1.Group("")
		authed.Use(handlers.AuthMiddleware(cfg))
		{
			authed.GET("/me", handlers.GetMe(db))
			authed.PUT("/me/display-name", handlers.UpdateDisplayName(db))
			authed.POST("/matches/ai", handlers.CreateAIMatch())
			authed.POST("/queue", handlers.JoinQueue(db, cfg))
			authed.GET("/queue/:ticket", handlers.GetQueueTicket(db))
			authed.DELETE("/queue/:ticket", handlers.LeaveQueue(db))
		}

		adminGroup := v1.Group("/admin")
		{
			adminGroup.POST("/login", handlers.AdminLogin(db, cfg))
			adminGroup.POST("/logout", handlers.AdminLogout(rdb, cfg))

			session := adminGroup.Group("")
			session.Use(handlers.AdminSessionMiddleware(rdb, cfg))
			{
				session.GET("/me", handlers.AdminMe())
				session.GET("/stats", handlers.GetAdminStats(db))
				session.GET("/live", handlers.GetAdminLiveMatches())
				session.GET("/matches", handlers.GetAdminMatches(db))
				session.GET("/matches/:id", handlers.GetAdminMatchDetail(db))
				session.GET("/audit", handlers.GetAdminAuditLogs(db))
				session.POST("/live/:token/end", handlers.RequireAdminRole(admin.RoleOperator), handlers.AdminEndMatch(db))
			}
		}
	}
}
