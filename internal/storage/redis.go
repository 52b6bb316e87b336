package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordering_assistant/pkg"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const turnLogPrefix = "turnlog:"

// RedisTurnLog stores each session log as a Redis list of JSON entries.
// The key expires after ttl without appends.
type RedisTurnLog struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTurnLog connects to Redis at redisURL
func NewRedisTurnLog(ctx context.Context, redisURL string, ttl time.Duration) (*RedisTurnLog, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTurnLog{client: client, ttl: ttl}, nil
}

// key generates a Redis key for the given session key
func (r *RedisTurnLog) key(sessionKey string) string {
	return turnLogPrefix + sessionKey
}

// Append pushes the turns and refreshes the expiry in one transaction
func (r *RedisTurnLog) Append(ctx context.Context, sessionKey string, seq uint64, turns ...pkg.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, 0, len(turns))
	for _, entry := range toLogged(seq, turns) {
		data, err := sonic.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		values = append(values, data)
	}

	key := r.key(sessionKey)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append turns: %w", err)
	}
	return nil
}

// Load returns every logged turn in append order
func (r *RedisTurnLog) Load(ctx context.Context, sessionKey string) ([]pkg.LoggedTurn, error) {
	raw, err := r.client.LRange(ctx, r.key(sessionKey), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []pkg.LoggedTurn{}, nil
		}
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}

	entries := make([]pkg.LoggedTurn, 0, len(raw))
	for _, item := range raw {
		var entry pkg.LoggedTurn
		if err := sonic.UnmarshalString(item, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes the session log
func (r *RedisTurnLog) Delete(ctx context.Context, sessionKey string) error {
	if err := r.client.Del(ctx, r.key(sessionKey)).Err(); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisTurnLog) Close() error {
	return r.client.Close()
}
