package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/playshuffle/backend/internal/game"
	"github.com/playshuffle/backend/internal/logging"
)

type AimData struct {
	Angle float64 `json:"angle"`
}

type AimDeltaData struct {
	Delta float64 `json:"delta"`
}

type ShootData struct {
	Angle float64 `json:"angle"`
	Power float64 `json:"power"`
}

type DiscTickData struct {
	Discs []game.DiscObservation `json:"discs"`
}

// GameHub is the single hub for all matches.
var GameHub *Hub

// startDelay lets both sockets finish their handshake before the opening
// events are broadcast.
var startDelay = 150 * time.Millisecond

func init() {
	GameHub = NewHub()
	go runGameHub(GameHub)
}

// Attach relays every event of mm's matches to connected clients.
func Attach(mm *game.MatchManager) {
	mm.OnEvent(BroadcastEvent)
}

// HandleWebSocket upgrades a player's connection to a match. The match token
// comes from the path and the player's secret from the pt query parameter.
func HandleWebSocket(c *gin.Context) {
	matchToken := c.Param("token")
	if matchToken == "" {
		matchToken = c.Query("token")
	}
	playerToken := c.Query("pt")

	if matchToken == "" || playerToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and pt required"})
		return
	}
	if game.Manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "match service unavailable"})
		return
	}

	m, err := game.Manager.GetMatchByToken(matchToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return
	}
	p := m.PlayerByToken(playerToken)
	if p == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid player token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Log.Warnf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		conn:       conn,
		playerID:   p.ID,
		number:     p.Number,
		matchID:    m.ID,
		matchToken: matchToken,
		send:       make(chan []byte, 256),
	}

	GameHub.register <- client

	go client.writePump()
	go client.readPump()
}

func runGameHub(h *Hub) {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	isReconnect := false
	if old, ok := h.clients[client.playerID]; ok {
		logging.Log.Infof("[WS] Player %s reconnecting - closing old connection", client.playerID)
		old.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"),
			time.Now().Add(time.Second))
		old.closeSend()
		if room, ok := h.rooms[old.matchID]; ok {
			delete(room, old.playerID)
		}
		isReconnect = true
	}
	h.clients[client.playerID] = client
	if _, ok := h.rooms[client.matchID]; !ok {
		h.rooms[client.matchID] = make(map[string]*Client)
	}
	h.rooms[client.matchID][client.playerID] = client
	h.mu.Unlock()

	logging.Log.Infof("[WS] Player %s connected to match %s", client.playerID, client.matchID)

	m, err := game.Manager.GetMatchByToken(client.matchToken)
	if err != nil {
		client.sendError("Match not found")
		return
	}
	m.SetPlayerConnected(client.playerID, true)

	switch m.Status() {
	case game.StatusWaiting:
		if m.BothPlayersConnected() {
			go func() {
				time.Sleep(startDelay)
				if !m.BothPlayersConnected() {
					return
				}
				if err := m.Start(); err != nil && err != game.ErrAlreadyStarted {
					logging.Log.Errorf("[WS] Failed to start match %s: %v", m.ID, err)
				}
			}()
			return
		}
		h.SendToPlayer(client.playerID, map[string]interface{}{
			"type":    "waiting_for_opponent",
			"message": "Waiting for opponent...",
		})
	default:
		h.SendToPlayer(client.playerID, stateMessage(m, client.playerID, "game_state"))
		if isReconnect || m.Status() == game.StatusInProgress {
			h.BroadcastToMatch(client.matchID, map[string]interface{}{
				"type":    "player_connected",
				"player":  client.playerID,
				"message": "Opponent connected",
			})
		}
	}
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	cur, ok := h.clients[client.playerID]
	if !ok || cur != client {
		h.mu.Unlock()
		client.closeSend()
		return
	}
	delete(h.clients, client.playerID)
	if room, ok := h.rooms[client.matchID]; ok {
		delete(room, client.playerID)
		if len(room) == 0 {
			delete(h.rooms, client.matchID)
		}
	}
	h.mu.Unlock()
	client.closeSend()

	logging.Log.Infof("[WS] Player %s disconnected from match %s", client.playerID, client.matchID)

	m, err := game.Manager.GetMatchByToken(client.matchToken)
	if err != nil {
		return
	}
	m.SetPlayerConnected(client.playerID, false)
	if m.Status() == game.StatusInProgress {
		grace := game.Manager.Config().DisconnectGraceSeconds
		h.BroadcastToMatch(client.matchID, map[string]interface{}{
			"type":          "player_disconnected",
			"player":        client.playerID,
			"grace_seconds": grace,
			"message":       "Opponent disconnected. Waiting for reconnect...",
		})
	}
}

// readPump reads client messages until the socket closes.
func (c *Client) readPump() {
	defer func() {
		GameHub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Log.Warnf("[WS] unexpected close for player %s: %v", c.playerID, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("Invalid message")
			continue
		}
		c.handleMessage(msg)
	}
}

// handleMessage applies one client message to the match. State changes reach
// clients through BroadcastEvent.
func (c *Client) handleMessage(msg WSMessage) {
	m, err := game.Manager.GetMatchByToken(c.matchToken)
	if err != nil {
		c.sendError("Match not found")
		return
	}

	var actionErr error
	switch msg.Type {
	case "aim":
		var data AimData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid aim data")
			return
		}
		actionErr = m.SetAim(c.number, data.Angle)

	case "aim_delta":
		var data AimDeltaData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid aim data")
			return
		}
		actionErr = m.AdjustAim(c.number, data.Delta)

	case "start_charge":
		actionErr = m.StartCharge(c.number)

	case "release_charge":
		_, actionErr = m.ReleaseCharge(c.number)

	case "shoot":
		var data ShootData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid shot data")
			return
		}
		_, actionErr = m.Shoot(c.number, data.Angle, data.Power)

	case "disc_tick":
		if game.Manager.ServerPhysics() {
			c.sendError("Physics runs on the server")
			return
		}
		if m.Phase() != game.PhaseShooting || m.CurrentPlayer() != c.number {
			// late ticks from the previous shot
			return
		}
		var data DiscTickData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid tick data")
			return
		}
		m.ObserveTick(data.Discs)
		return

	case "get_state":
		GameHub.SendToPlayer(c.playerID, stateMessage(m, c.playerID, "game_state"))
		return

	case "concede":
		actionErr = m.Concede(c.number)

	case "rematch":
		_, actionErr = game.Manager.Rematch(c.matchToken)

	default:
		c.sendError("Unknown message type")
		return
	}

	if actionErr != nil {
		c.sendError(actionErr.Error())
		return
	}
	if m.CurrentPlayerID() == c.playerID {
		scheduleIdle(c.matchToken, c.playerID)
	}
}

func stateMessage(m *game.Match, playerID, kind string) game.PlayerState {
	s := m.StateFor(playerID)
	s.Type = kind
	return s
}

// BroadcastEvent relays a match event to the room and follows the ones that
// change the board with a personalised state for each seat.
func BroadcastEvent(m *game.Match, e game.Event) {
	GameHub.BroadcastToMatch(m.ID, e)

	switch e.Type {
	case game.EventTurn:
		trackTurn(m, e.Player)
		sendStates(m)
	case game.EventRoundStarted, game.EventRoundScored, game.EventSuddenDeath,
		game.EventDiscResolved, game.EventReset:
		sendStates(m)
	case game.EventGameOver, game.EventCancelled:
		for _, p := range m.Players {
			if !p.AI {
				clearIdle(m.Token, p.ID)
			}
		}
		sendStates(m)
	}
}

func sendStates(m *game.Match) {
	for _, p := range m.Players {
		if !p.AI {
			GameHub.SendToPlayer(p.ID, stateMessage(m, p.ID, "game_update"))
		}
	}
}

// trackTurn arms idle timers for the acting human and disarms the other seat.
func trackTurn(m *game.Match, acting int) {
	for _, p := range m.Players {
		if p.AI {
			continue
		}
		if p.Number == acting {
			scheduleIdle(m.Token, p.ID)
		} else {
			clearIdle(m.Token, p.ID)
		}
	}
}
