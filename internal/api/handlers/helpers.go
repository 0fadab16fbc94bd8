package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playshuffle/backend/internal/game"
)

// pagination reads limit/offset query params, capping limit at max.
func pagination(c *gin.Context, def, max int) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// requireDB aborts with 503 when the handler needs Postgres and it is not
// configured.
func requireDB(c *gin.Context, db *sqlx.DB) bool {
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return false
	}
	return true
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func requireManager(c *gin.Context) bool {
	if game.Manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "match service unavailable"})
		return false
	}
	return true
}
