package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playshuffle/backend/internal/admin"
	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/game"
	"github.com/playshuffle/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:        "development",
		DiscsPerPlayer:     4,
		WinThreshold:       75,
		TiePolicy:          "sudden_death",
		ShotPower:          12,
		MaxAimDegrees:      15,
		ChargePeriodMs:     2000,
		RestEpsilon:        0.1,
		RestTicks:          3,
		PhysicsMode:        "client",
		TickHz:             60,
		BoardFriction:      2.5,
		MatchExpiryMinutes: 10,
		JWTSecret:          "test-secret",
		SessionTTLHours:    1,
		AdminSessionHours:  1,
	}
}

// newRouter wires the full API with no Postgres or Redis behind it.
func newRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	mm, err := game.NewMatchManager(nil, nil, cfg)
	require.NoError(t, err)
	prev := game.Manager
	game.Manager = mm
	t.Cleanup(func() { game.Manager = prev })

	r := gin.New()
	SetupRoutes(r, nil, nil, cfg)
	return r, cfg
}

func do(r *gin.Engine, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func guest(t *testing.T, r *gin.Engine, name string) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/v1/auth/guest", "", map[string]string{"display_name": name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func adminSession(t *testing.T, cfg *config.Config, roles ...string) string {
	t.Helper()
	token, _, err := admin.IssueSession(cfg.JWTSecret, &models.AdminAccount{Username: "ops", Roles: roles}, time.Hour)
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		w := do(r, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "ok", body["status"])
		assert.EqualValues(t, 0, body["active_matches"])
	}
}

func TestGuestLoginWithoutDatabase(t *testing.T) {
	r, _ := newRouter(t)
	token := guest(t, r, "  Ada  ")

	w := do(r, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	assert.Equal(t, "Ada", me["display_name"])
	assert.Contains(t, me["key"], "guest_")
	assert.EqualValues(t, 0, me["id"])
}

func TestAuthRequired(t *testing.T) {
	r, _ := newRouter(t)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/me", "not-a-jwt", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/v1/matches/ai", "", nil).Code)
}

func TestCreateAIMatchAndReadState(t *testing.T) {
	r, _ := newRouter(t)
	token := guest(t, r, "Ada")

	w := do(r, http.MethodPost, "/api/v1/matches/ai", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	seat := decode(t, w)
	matchToken := seat["match_token"].(string)
	playerToken := seat["player_token"].(string)
	assert.EqualValues(t, 1, seat["number"])
	assert.Equal(t, "/api/v1/matches/"+matchToken+"/ws?pt="+playerToken, seat["ws_path"])

	// still seated in the first match
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/v1/matches/ai", token, nil).Code)

	w = do(r, http.MethodGet, "/api/v1/matches/"+matchToken, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode(t, w)
	assert.Equal(t, string(game.StatusWaiting), state["status"])
	players := state["players"].([]interface{})
	assert.Equal(t, true, players[1].(map[string]interface{})["ai"])

	w = do(r, http.MethodGet, "/api/v1/matches/"+matchToken+"?pt="+playerToken, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["my_number"])

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/matches/"+matchToken+"?pt=wrong", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/matches/missing", "", nil).Code)

	w = do(r, http.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, matchToken, decode(t, w)["match_token"])
}

func TestReplayRequiresFinishedMatch(t *testing.T) {
	r, _ := newRouter(t)
	m, err := game.Manager.CreateMatch(game.NewMatchRequest{Players: [2]game.PlayerSpec{
		{ID: "a", DisplayName: "A"}, {ID: "b", DisplayName: "B"},
	}})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	assert.Equal(t, http.StatusConflict, do(r, http.MethodGet, "/api/v1/matches/"+m.Token+"/replay", "", nil).Code)

	require.NoError(t, m.Concede(1))
	w := do(r, http.MethodGet, "/api/v1/matches/"+m.Token+"/replay", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	events := body["events"].([]interface{})
	require.NotEmpty(t, events)
	assert.Equal(t, "match_started", events[0].(map[string]interface{})["type"])

	w = do(r, http.MethodGet, "/api/v1/matches/"+m.Token+"/replay?format=zst", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zstd", w.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/matches/missing/replay", "", nil).Code)
}

func TestRules(t *testing.T) {
	r, cfg := newRouter(t)
	w := do(r, http.MethodGet, "/api/v1/rules", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	rules := body["rules"].(map[string]interface{})
	assert.EqualValues(t, cfg.WinThreshold, rules["win_threshold"])
	assert.EqualValues(t, cfg.DiscsPerPlayer, rules["discs_per_player"])
	assert.NotEmpty(t, rules["zones"])
	assert.Equal(t, "client", body["physics_mode"])
}

func TestStorageRoutesWithoutDatabase(t *testing.T) {
	r, _ := newRouter(t)
	token := guest(t, r, "Ada")

	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/leaderboard", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/players/1/stats", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/api/v1/queue", token, nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		do(r, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"username": "ops", "token": "x"}).Code)
}

func TestAdminSession(t *testing.T) {
	r, cfg := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/admin/me", "", nil).Code)

	forged, _, err := admin.IssueSession("other-secret", &models.AdminAccount{Username: "ops"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/admin/me", forged, nil).Code)

	viewer := adminSession(t, cfg, admin.RoleViewer)
	w := do(r, http.MethodGet, "/api/v1/admin/me", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", decode(t, w)["username"])

	w = do(r, http.MethodGet, "/api/v1/admin/stats", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["active_matches"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/me", nil)
	req.AddCookie(&http.Cookie{Name: "admin_session", Value: viewer})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEndMatch(t *testing.T) {
	r, cfg := newRouter(t)
	m, err := game.Manager.CreateMatch(game.NewMatchRequest{Players: [2]game.PlayerSpec{
		{ID: "a", DisplayName: "A"}, {ID: "b", DisplayName: "B"},
	}})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	w := do(r, http.MethodGet, "/api/v1/admin/live", adminSession(t, cfg, admin.RoleViewer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	path := "/api/v1/admin/live/" + m.Token + "/end"
	reason := map[string]string{"reason": "stuck"}
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, path, adminSession(t, cfg, admin.RoleViewer), reason).Code)

	operator := adminSession(t, cfg, admin.RoleOperator)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, path, operator, nil).Code)

	w = do(r, http.MethodPost, path, operator, reason)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(game.StatusCancelled), decode(t, w)["status"])
	assert.Equal(t, 0, game.Manager.ActiveMatchCount())

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, path, operator, reason).Code)
}
