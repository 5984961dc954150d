package database

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient initializes and returns a Redis client, or nil when the
// cache is unreachable. The listing cache is best-effort; the service runs
// without it.
func NewRedisClient(redisURL string, logger *zap.Logger) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("Invalid Redis URL, running without cache", zap.Error(err))
		return nil
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
		return nil
	}

	logger.Info("Connected to Redis")
	return client
}
