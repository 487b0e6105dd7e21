// Package cache opens the redis connection used for token revocation.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	connectAttempts = 5
	retryDelay      = 2 * time.Second
)

// NewRedis parses a redis:// URL and pings the server, retrying a few times
// while it starts.
func NewRedis(ctx context.Context, url string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	for i := 1; i <= connectAttempts; i++ {
		err = client.Ping(ctx).Err()
		if err == nil {
			return client, nil
		}
		logger.Warn().Err(err).Int("attempt", i).Int("max", connectAttempts).Msg("redis not reachable")
		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	client.Close()
	return nil, fmt.Errorf("connect redis after %d attempts: %w", connectAttempts, err)
}

// Pinger adapts a redis client to the health check interface.
type Pinger struct {
	Client *redis.Client
}

func (p Pinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
