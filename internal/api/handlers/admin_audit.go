package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playshuffle/backend/internal/admin"
	"github.com/playshuffle/backend/internal/logging"
)

// GetAdminAuditLogs returns paginated audit log entries
func GetAdminAuditLogs(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireDB(c, db) {
			return
		}
		username := c.DefaultQuery("admin_username", "")
		limit, offset := pagination(c, 25, 200)

		logs, err := admin.GetAdminAuditLogs(db, username, limit, offset)
		if err != nil {
			logging.Log.Errorf("[ADMIN] Failed to fetch audit logs: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"logs": logs, "limit": limit, "offset": offset})
	}
}
