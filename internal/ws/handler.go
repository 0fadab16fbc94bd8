package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/playshuffle/backend/internal/game"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are checked by middleware.WebSocketCORSCheck before the upgrade
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client represents a connected WebSocket client
type Client struct {
	conn       *websocket.Conn
	playerID   string
	number     int
	matchID    string
	matchToken string
	send       chan []byte
	closeOnce  sync.Once
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub maintains the set of active clients
type Hub struct {
	clients    map[string]*Client            // playerID -> Client
	rooms      map[string]map[string]*Client // matchID -> playerID -> Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// BroadcastToMatch sends a message to every client seated in a match.
func (h *Hub) BroadcastToMatch(matchID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logging.Log.Errorf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[matchID] {
		select {
		case client.send <- data:
		default:
			logging.Log.Warnf("[WS] Send buffer full for player %s in match %s, dropping message", client.playerID, matchID)
		}
	}
}

// SendToPlayer sends a message to a specific player
func (h *Hub) SendToPlayer(playerID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logging.Log.Errorf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[playerID]
	if !ok {
		return
	}
	select {
	case client.send <- data:
	default:
		logging.Log.Warnf("[WS] SendToPlayer dropped message for player %s (buffer full)", playerID)
	}
}

// RoomSize is the number of clients connected to a match.
func (h *Hub) RoomSize(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[matchID])
}

// WSMessage is the envelope of every client message.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// replaced or cleaned up
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Log.Debugf("[WS] write error for player %s: %v", c.playerID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logging.Log.Debugf("[WS] ping error for player %s: %v", c.playerID, err)
				return
			}
		}
	}
}

// sendError sends an error message to the client while it is still the
// registered connection for its player.
func (c *Client) sendError(message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
	GameHub.mu.RLock()
	defer GameHub.mu.RUnlock()
	if GameHub.clients[c.playerID] != c {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// scheduleIdle arms the idle warning and forfeit deadlines for the acting
// player, counted from now.
func scheduleIdle(matchToken, playerID string) {
	if rdbClient == nil || wsConfig == nil {
		return
	}
	ctx := context.Background()
	now := time.Now().Unix()
	member := game.IdleMember(matchToken, playerID)
	pipe := rdbClient.TxPipeline()
	pipe.Set(ctx, game.LastActivePrefix+member, strconv.FormatInt(now, 10), time.Hour)
	pipe.ZAdd(ctx, game.IdleWarningKey, redis.Z{Score: float64(now + int64(wsConfig.IdleWarningSeconds)), Member: member})
	pipe.ZAdd(ctx, game.IdleForfeitKey, redis.Z{Score: float64(now + int64(wsConfig.IdleForfeitSeconds)), Member: member})
	if _, err := pipe.Exec(ctx); err != nil {
		logging.Log.Warnf("[WS] failed to schedule idle timers for %s: %v", member, err)
	}
}

// clearIdle drops any pending idle deadlines for a player.
func clearIdle(matchToken, playerID string) {
	if rdbClient == nil {
		return
	}
	ctx := context.Background()
	member := game.IdleMember(matchToken, playerID)
	pipe := rdbClient.TxPipeline()
	pipe.ZRem(ctx, game.IdleWarningKey, member)
	pipe.ZRem(ctx, game.IdleForfeitKey, member)
	pipe.Del(ctx, game.LastActivePrefix+member)
	if _, err := pipe.Exec(ctx); err != nil {
		logging.Log.Warnf("[WS] failed to clear idle timers for %s: %v", member, err)
	}
}
