package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the global redis client
var Redis *redis.Client

// ConnectRedis connects to redis and verifies the connection
func ConnectRedis(cfg *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	Redis = client
	log.Printf("✅ Redis connected successfully [%s:%s/%d]", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB)
	return client, nil
}

// CloseRedis closes the redis connection
func CloseRedis() error {
	if Redis == nil {
		return nil
	}
	return Redis.Close()
}

// RedisHealthCheck checks if redis is healthy
func RedisHealthCheck(ctx context.Context) error {
	if Redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	return Redis.Ping(ctx).Err()
}
