package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisHistory keeps each user's records in a capped Redis list.
type RedisHistory struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ History = (*RedisHistory)(nil)

func NewRedisHistory(rdb redis.UniversalClient) *RedisHistory {
	return &RedisHistory{rdb: rdb, prefix: "social_agent:history:"}
}

func (h *RedisHistory) key(username string) string {
	return h.prefix + username
}

func (h *RedisHistory) Append(ctx context.Context, username string, rec Record) error {
	if username == "" {
		return fmt.Errorf("history: username is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: marshal record: %w", err)
	}
	key := h.key(username)
	pipe := h.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, MaxHistory-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history: redis append: %w", err)
	}
	return nil
}

func (h *RedisHistory) Recent(ctx context.Context, username string, limit int) ([]Record, error) {
	if username == "" {
		return nil, nil
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := h.rdb.LRange(ctx, h.key(username), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("history: redis range: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
