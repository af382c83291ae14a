package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"docspace/internal/config"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "docspace:snapshot:"

type Redis struct {
	client *redis.Client
}

func NewRedisClient(ctx context.Context, conf *config.Config) (*Redis, error) {
	if !conf.Redis.Enabled {
		return nil, fmt.Errorf("redis client is disabled in configuration")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Load(ctx context.Context, key string, value interface{}) error {
	body, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err = json.Unmarshal(body, value); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Save(ctx context.Context, key string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	if err = r.client.Set(ctx, redisKeyPrefix+key, body, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() {
	_ = r.client.Close()
}
