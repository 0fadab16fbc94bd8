package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		DiscsPerPlayer:         4,
		WinThreshold:           75,
		TiePolicy:              "sudden_death",
		ShotPower:              12,
		MaxAimDegrees:          15,
		ChargePeriodMs:         2000,
		RestEpsilon:            0.1,
		RestTicks:              3,
		RoundDelayMs:           0,
		AIDelayMs:              50,
		PhysicsMode:            "client",
		TickHz:                 60,
		BoardFriction:          2.5,
		MatchExpiryMinutes:     10,
		DisconnectGraceSeconds: 120,
	}
}

type testServer struct {
	mm  *game.MatchManager
	srv *httptest.Server
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	for _, o := range opts {
		o(cfg)
	}
	mm, err := game.NewMatchManager(nil, nil, cfg)
	require.NoError(t, err)
	Attach(mm)
	prev, prevDelay := game.Manager, startDelay
	game.Manager, startDelay = mm, 0

	r := gin.New()
	r.GET("/matches/:token/ws", HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		game.Manager, startDelay = prev, prevDelay
	})
	return &testServer{mm: mm, srv: srv}
}

func (ts *testServer) wsURL(token, pt string) string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/matches/" + token + "/ws?pt=" + pt
}

func (ts *testServer) dial(t *testing.T, m *game.Match, seat int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(m.Token, m.Players[seat].PlayerToken), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, kind string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", kind)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == kind {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, kind string, data interface{}) {
	t.Helper()
	msg := map[string]interface{}{"type": kind}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func restTick(disc int, z float64) map[string]interface{} {
	return map[string]interface{}{
		"discs": []map[string]interface{}{
			{"disc": disc, "position": map[string]float64{"x": 0, "y": 0, "z": z}},
		},
	}
}

func TestHandleWebSocketRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t)
	m, err := ts.mm.CreateMatch(game.NewMatchRequest{Players: [2]game.PlayerSpec{{ID: "rej1"}, {ID: "rej2"}}})
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing player token", "/matches/" + m.Token + "/ws", http.StatusBadRequest},
		{"unknown match", "/matches/nope/ws?pt=x", http.StatusNotFound},
		{"wrong player token", "/matches/" + m.Token + "/ws?pt=x", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.srv.URL + tt.path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestMatchStartsWhenBothConnect(t *testing.T) {
	ts := newTestServer(t)
	m, err := ts.mm.CreateMatch(game.NewMatchRequest{Players: [2]game.PlayerSpec{{ID: "start1"}, {ID: "start2"}}})
	require.NoError(t, err)

	c1 := ts.dial(t, m, 0)
	readUntil(t, c1, "waiting_for_opponent")
	c2 := ts.dial(t, m, 1)

	turn := readUntil(t, c1, "turn")
	assert.EqualValues(t, 1, turn["player"])
	readUntil(t, c2, "turn")

	state := readUntil(t, c2, "game_update")
	assert.EqualValues(t, 2, state["my_number"])
	assert.Equal(t, false, state["my_turn"])
	assert.Equal(t, string(game.StatusInProgress), state["status"])
}

func TestShotFlowOverWebSocket(t *testing.T) {
	ts := newTestServer(t)
	m, err := ts.mm.CreateMatch(game.NewMatchRequest{Players: [2]game.PlayerSpec{{ID: "flow1"}, {ID: "flow2"}}})
	require.NoError(t, err)
	c1 := ts.dial(t, m, 0)
	c2 := ts.dial(t, m, 1)
	readUntil(t, c1, "turn")
	readUntil(t, c2, "turn")

	send(t, c2, "shoot", map[string]float64{"angle": 0, "power": 0.5})
	errMsg := readUntil(t, c2, "error")
	assert.Equal(t, game.ErrNotYourTurn.Error(), errMsg["message"])

	send(t, c1, "shoot", map[string]float64{"angle": 0, "power": 0.5})
	shot := readUntil(t, c2, "shot")
	assert.EqualValues(t, 1, shot["player"])
	assert.EqualValues(t, 1, shot["shot_number"])

	// only the acting client streams ticks
	for i := 0; i < 3; i++ {
		send(t, c2, "disc_tick", restTick(0, 16))
	}
	for i := 0; i < 3; i++ {
		send(t, c1, "disc_tick", restTick(0, 16))
	}

	next := readUntil(t, c2, "turn")
	assert.EqualValues(t, 2, next["player"])
	assert.Equal(t, game.PhaseAiming, m.Phase())
	assert.Equal(t, 2, m.CurrentPlayer())
}

func TestAimAndStateMessages(t *testing.T) {
	ts := newTestServer(t)
	m, err := ts.mm.CreateMatch(game.NewMatchRequest{Players: [2]game.PlayerSpec{{ID: "aim1"}, {ID: "aim2"}}})
	require.NoError(t, err)
	c1 := ts.dial(t, m, 0)
	c2 := ts.dial(t, m, 1)
	readUntil(t, c1, "turn")

	send(t, c1, "aim", map[string]float64{"angle": 0.1})
	aim := readUntil(t, c2, "aim")
	assert.InDelta(t, 0.1, aim["aim"], 1e-9)

	send(t, c1, "bogus", nil)
	assert.Equal(t, "Unknown message type", readUntil(t, c1, "error")["message"])

	send(t, c1, "get_state", nil)
	state := readUntil(t, c1, "game_state")
	assert.EqualValues(t, 1, state["my_number"])
	assert.Equal(t, true, state["my_turn"])
	assert.InDelta(t, 0.1, state["aim"], 1e-9)
}

func TestConcedeAndRematch(t *testing.T) {
	ts := newTestServer(t)
	m, err := ts.mm.CreateMatch(game.NewMatchRequest{Players: [2]game.PlayerSpec{{ID: "con1"}, {ID: "con2"}}})
	require.NoError(t, err)
	c1 := ts.dial(t, m, 0)
	c2 := ts.dial(t, m, 1)
	readUntil(t, c1, "turn")
	readUntil(t, c2, "turn")

	send(t, c2, "concede", nil)
	over := readUntil(t, c1, "game_over")
	result := over["result"].(map[string]interface{})
	assert.EqualValues(t, 1, result["winner"])
	assert.Equal(t, game.WinConcede, result["win_type"])

	send(t, c1, "rematch", nil)
	readUntil(t, c2, "match_reset")
	assert.Equal(t, game.StatusInProgress, m.Status())
}

func TestRematchDuringPlayIsRejected(t *testing.T) {
	ts := newTestServer(t)
	m, err := ts.mm.CreateMatch(game.NewMatchRequest{Players: [2]game.PlayerSpec{{ID: "mid1"}, {ID: "mid2"}}})
	require.NoError(t, err)
	c1 := ts.dial(t, m, 0)
	c2 := ts.dial(t, m, 1)
	readUntil(t, c1, "turn")
	readUntil(t, c2, "turn")

	send(t, c2, "rematch", nil)
	msg := readUntil(t, c2, "error")
	assert.Equal(t, game.ErrWrongPhase.Error(), msg["message"])
	assert.Equal(t, game.StatusInProgress, m.Status())
	assert.Equal(t, 1, m.Round())
	assert.Equal(t, 1, m.CurrentPlayer())
}

func TestServerPhysicsRejectsTicks(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.PhysicsMode = "server" })

	m, err := ts.mm.CreateMatch(game.NewMatchRequest{Players: [2]game.PlayerSpec{{ID: "srv1"}, {ID: "srv2"}}})
	require.NoError(t, err)
	defer ts.mm.EndMatch(m.ID)
	c1 := ts.dial(t, m, 0)
	ts.dial(t, m, 1)
	readUntil(t, c1, "turn")

	send(t, c1, "disc_tick", restTick(0, 16))
	assert.Equal(t, "Physics runs on the server", readUntil(t, c1, "error")["message"])
}

func TestAIMatchStartsWithOneSocket(t *testing.T) {
	ts := newTestServer(t)
	m, err := ts.mm.CreateAIMatch(game.PlayerSpec{ID: "solo"})
	require.NoError(t, err)

	c1 := ts.dial(t, m, 0)
	turn := readUntil(t, c1, "turn")
	assert.EqualValues(t, 1, turn["player"])
}

func TestRelayNotice(t *testing.T) {
	ts := newTestServer(t)
	m, err := ts.mm.CreateMatch(game.NewMatchRequest{Players: [2]game.PlayerSpec{{ID: "idle1"}, {ID: "idle2"}}})
	require.NoError(t, err)
	c1 := ts.dial(t, m, 0)
	readUntil(t, c1, "waiting_for_opponent")

	payload, _ := json.Marshal(game.IdleNotice{
		Type:       "player_idle_warning",
		MatchToken: m.Token,
		Player:     "idle1",
		Message:    "Player idle; will forfeit soon.",
	})
	relayNotice(payload)

	msg := readUntil(t, c1, "player_idle_warning")
	assert.Equal(t, "idle1", msg["player"])
}
