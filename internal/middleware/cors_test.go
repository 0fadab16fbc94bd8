package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/playshuffle/backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestWebSocketCORSCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		env     string
		upgrade bool
		origin  string
		want    int
	}{
		{"plain request passes", "production", false, "", http.StatusOK},
		{"missing origin", "development", true, "", http.StatusBadRequest},
		{"dev localhost", "development", true, "http://localhost:3000", http.StatusOK},
		{"dev foreign", "development", true, "https://evil.example", http.StatusForbidden},
		{"prod frontend", "production", true, "https://play.example", http.StatusOK},
		{"prod known domain", "production", true, "https://playshuffle.app", http.StatusOK},
		{"prod localhost", "production", true, "http://localhost:5173", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Environment: tt.env, FrontendURL: "https://play.example"}
			r := gin.New()
			r.GET("/ws", WebSocketCORSCheck(cfg), func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	dev := AllowedOrigins(&config.Config{Environment: "development"})
	assert.Contains(t, dev, "http://localhost:5173")

	prod := AllowedOrigins(&config.Config{Environment: "production", FrontendURL: "https://x.example"})
	assert.Contains(t, prod, "https://x.example")
	assert.NotContains(t, prod, "http://localhost:5173")
	assert.Len(t, productionOrigins, 2)
}
