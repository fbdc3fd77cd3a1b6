package redis

import (
	"context"

	"fluxia/common/config"

	"github.com/go-redis/redis/v8"
)

// Client is the go-redis client used across fluxia.
type Client = redis.Client

// NewRedisClient builds a client from cfg. It does not dial.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping checks connectivity.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close closes the client.
func Close(client *redis.Client) error {
	return client.Close()
}
