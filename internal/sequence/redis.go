package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agenthands/genai/internal/config"
)

type incrementer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Redis allocates ids with INCR, which is atomic across every instance
// sharing the server.
type Redis struct {
	rdb incrementer
	key string
}

func NewRedis(rdb incrementer, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "genai"
	}
	return &Redis{rdb: rdb, key: keyPrefix + ":batch_id"}
}

func (r *Redis) Next(ctx context.Context) (int64, error) {
	id, err := r.rdb.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", r.key, err)
	}
	return id, nil
}

// NewRedisClient connects and pings the configured server.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
