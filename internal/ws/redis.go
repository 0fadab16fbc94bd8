package ws

import (
	"context"
	"encoding/json"

	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/game"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/redis/go-redis/v9"
)

var rdbClient *redis.Client
var wsConfig *config.Config

func SetRedisClient(r *redis.Client, cfg *config.Config) {
	rdbClient = r
	wsConfig = cfg
}

// StartMatchEventSubscriber relays idle notices published by the idle worker
// to the rooms of the matches they concern.
func StartMatchEventSubscriber(ctx context.Context) {
	if rdbClient == nil {
		logging.Log.Info("[WS] Redis client not set; match event subscriber not started")
		return
	}

	pubsub := rdbClient.Subscribe(ctx, game.MatchEventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		logging.Log.Infof("[WS] %s subscriber started", game.MatchEventsChannel)
		for msg := range ch {
			relayNotice([]byte(msg.Payload))
		}
	}()
}

func relayNotice(payload []byte) {
	var n game.IdleNotice
	if err := json.Unmarshal(payload, &n); err != nil {
		logging.Log.Warnf("[WS] invalid match event payload: %v", err)
		return
	}
	matchID := n.MatchID
	if matchID == "" && game.Manager != nil {
		if m, err := game.Manager.GetMatchByToken(n.MatchToken); err == nil {
			matchID = m.ID
		}
	}
	if matchID == "" {
		return
	}

	switch n.Type {
	case "player_idle_warning", "player_forfeit":
		if GameHub.RoomSize(matchID) == 0 {
			logging.Log.Debugf("[WS] no room for match %s; %s not relayed", matchID, n.Type)
			return
		}
		GameHub.BroadcastToMatch(matchID, n)
	default:
		logging.Log.Debugf("[WS] unknown match event type: %s", n.Type)
	}
}
