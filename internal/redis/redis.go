package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/playshuffle/backend/internal/logging"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Connect opens the Redis client used for live snapshots, idle timers and
// match event fan-out.
func Connect(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logging.Log.Infof("[REDIS] Connected to %s (db=%d)", opt.Addr, opt.DB)
	return client, nil
}
