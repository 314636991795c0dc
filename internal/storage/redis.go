package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/abduss/filebroker/internal/config"
	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 5 * time.Second

// NewRedisClient connects to the Redis instance backing the token store.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, defaultRedisTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
