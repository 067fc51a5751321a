package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guillermoBallester/querytap/internal/core/port"
	"github.com/redis/go-redis/v9"
)

// DefaultStreamMaxLen caps the Redis stream when no length is configured.
const DefaultStreamMaxLen = 10000

// Redis appends each record to a Redis stream with XADD, trimming the
// stream to maxLen entries.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
	owned  bool
	now    func() time.Time
}

// NewRedis connects to addr and verifies the connection. The returned sink
// owns the client and closes it on Close.
func NewRedis(ctx context.Context, addr, stream string, maxLen int64) (*Redis, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		opt = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed at %s: %w", opt.Addr, err)
	}

	s := NewRedisWithClient(client, stream, maxLen)
	s.owned = true
	return s, nil
}

// NewRedisWithClient wraps an existing client, which the caller keeps
// ownership of.
func NewRedisWithClient(client *redis.Client, stream string, maxLen int64) *Redis {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &Redis{client: client, stream: stream, maxLen: maxLen, now: time.Now}
}

func (s *Redis) Name() string { return "redis" }

func (s *Redis) Write(ctx context.Context, rec port.Record) error {
	e := newEntry(rec, s.now())
	binds, err := json.Marshal(e.Binds)
	if err != nil {
		return fmt.Errorf("encoding binds: %w", err)
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Values: map[string]any{
			"ts":          e.Timestamp,
			"label":       e.Label,
			"sql":         e.SQL,
			"category":    e.Category.String(),
			"duration_ms": e.DurationMS,
			"cached":      e.Cached,
			"binds":       string(binds),
			"scope":       e.Scope,
			"fingerprint": e.Fingerprint,
		},
	}).Err()
}

func (s *Redis) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
