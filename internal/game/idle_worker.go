package game

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/redis/go-redis/v9"
)

// Redis keys shared with the websocket layer, which schedules the sorted-set
// entries whenever the acting player changes or sends input.
const (
	IdleWarningKey     = "idle_warning"
	IdleForfeitKey     = "idle_forfeit"
	LastActivePrefix   = "last_active:"
	MatchEventsChannel = "match_events"
)

// IdleMember is the sorted-set member for a player in a match.
func IdleMember(matchToken, playerID string) string {
	return "m:" + matchToken + ":p:" + playerID
}

// parseMember expects member format m:<matchToken>:p:<playerID>
func parseMember(m string) (string, string) {
	parts := strings.SplitN(m, ":", 4)
	if len(parts) == 4 && parts[0] == "m" && parts[2] == "p" {
		return parts[1], parts[3]
	}
	return "", ""
}

// IdleNotice is published on MatchEventsChannel for the ws layer to relay.
type IdleNotice struct {
	Type             string `json:"type"` // player_idle_warning or player_forfeit
	MatchToken       string `json:"match_token"`
	MatchID          string `json:"match_id"`
	Player           string `json:"player"`
	ForfeitAt        string `json:"forfeit_at,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`
	Winner           string `json:"winner,omitempty"`
	Message          string `json:"message"`
}

// StartIdleWorker starts a background worker that processes idle warnings and
// forfeits using Redis sorted sets.
func StartIdleWorker(ctx context.Context, rdb *redis.Client, cfg *config.Config) {
	if rdb == nil || cfg == nil {
		logging.Log.Info("[IDLE] Redis or config missing; idle worker not started")
		return
	}
	poll := time.Duration(cfg.IdleWorkerPollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}

	logging.Log.Info("[IDLE] Idle worker started")
	go func() {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logging.Log.Info("[IDLE] Idle worker stopping")
				return
			case now := <-ticker.C:
				processIdle(ctx, rdb, cfg, now)
			}
		}
	}()
}

func processIdle(ctx context.Context, rdb *redis.Client, cfg *config.Config, now time.Time) {
	for _, member := range dueMembers(ctx, rdb, IdleWarningKey, now) {
		lastTs := lastActive(ctx, rdb, member)
		if now.Unix()-lastTs < int64(cfg.IdleWarningSeconds) {
			continue
		}
		matchToken, playerID := parseMember(member)
		m := idleTarget(matchToken, playerID)
		if m == nil {
			continue
		}
		forfeitAt := time.Unix(lastTs, 0).Add(time.Duration(cfg.IdleForfeitSeconds) * time.Second)
		publishNotice(ctx, rdb, IdleNotice{
			Type:             "player_idle_warning",
			MatchToken:       matchToken,
			MatchID:          m.ID,
			Player:           playerID,
			ForfeitAt:        forfeitAt.Format(time.RFC3339),
			RemainingSeconds: int(forfeitAt.Sub(now).Seconds()),
			Message:          "Player idle; will forfeit soon.",
		})
	}

	for _, member := range dueMembers(ctx, rdb, IdleForfeitKey, now) {
		lastTs := lastActive(ctx, rdb, member)
		if now.Unix()-lastTs < int64(cfg.IdleForfeitSeconds) {
			continue
		}
		matchToken, playerID := parseMember(member)
		m := idleTarget(matchToken, playerID)
		if m == nil {
			continue
		}
		logging.Log.Infof("[IDLE] Forfeiting player %s in match %s due to inactivity", playerID, matchToken)
		if err := m.Forfeit(m.PlayerNumber(playerID), WinIdle); err != nil {
			logging.Log.Warnf("[IDLE] Forfeit failed for %s in %s: %v", playerID, matchToken, err)
			continue
		}
		res, _ := m.Result()
		publishNotice(ctx, rdb, IdleNotice{
			Type:       "player_forfeit",
			MatchToken: matchToken,
			MatchID:    m.ID,
			Player:     playerID,
			Winner:     res.WinnerID,
			Message:    "Player forfeited due to inactivity",
		})
	}
}

// dueMembers claims members whose deadline has passed. ZREM decides the
// winner when several instances poll the same set.
func dueMembers(ctx context.Context, rdb *redis.Client, key string, now time.Time) []string {
	members, err := rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now.Unix())}).Result()
	if err != nil {
		logging.Log.Errorf("[IDLE] Failed to fetch %s: %v", key, err)
		return nil
	}
	var claimed []string
	for _, m := range members {
		if removed, _ := rdb.ZRem(ctx, key, m).Result(); removed > 0 {
			claimed = append(claimed, m)
		}
	}
	return claimed
}

func lastActive(ctx context.Context, rdb *redis.Client, member string) int64 {
	last, _ := rdb.Get(ctx, LastActivePrefix+member).Result()
	ts, _ := strconv.ParseInt(last, 10, 64)
	return ts
}

// idleTarget returns the match only while it is player's turn to act.
func idleTarget(matchToken, playerID string) *Match {
	if matchToken == "" || playerID == "" || Manager == nil {
		return nil
	}
	m, err := Manager.GetMatchByToken(matchToken)
	if err != nil {
		return nil
	}
	if m.Status() != StatusInProgress || m.CurrentPlayerID() != playerID {
		logging.Log.Debugf("[IDLE] skipping %s in %s (status=%s current=%s)", playerID, matchToken, m.Status(), m.CurrentPlayerID())
		return nil
	}
	return m
}

func publishNotice(ctx context.Context, rdb *redis.Client, n IdleNotice) {
	b, err := json.Marshal(n)
	if err != nil {
		return
	}
	if subs, err := rdb.Publish(ctx, MatchEventsChannel, b).Result(); err != nil {
		logging.Log.Errorf("[IDLE] publish %s failed: match=%s player=%s err=%v", n.Type, n.MatchToken, n.Player, err)
	} else {
		logging.Log.Infof("[IDLE] published %s: match=%s player=%s subscribers=%d", n.Type, n.MatchToken, n.Player, subs)
	}
}
