package auditlog

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream key used when none is configured.
const DefaultStream = "crowd-signal:transitions"

// RedisStore mirrors transitions into a Redis stream (XADD), so other
// services can follow them with XREAD.
type RedisStore struct {
	client  *backend.Client
	stream  string
	maxLen  int64
	timeout time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithStream sets the stream key.
func WithStream(stream string) RedisOption {
	return func(s *RedisStore) {
		s.stream = stream
	}
}

// WithMaxLen caps the stream length (approximate trimming). 0 keeps everything.
func WithMaxLen(n int64) RedisOption {
	return func(s *RedisStore) {
		s.maxLen = n
	}
}

// NewRedis creates a Redis store connected to address.
func NewRedis(address, password string, db int, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisFromClient(client, opts...)
}

// NewRedisFromClient creates a Redis store from an existing client.
func NewRedisFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		stream:  DefaultStream,
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds the entry to the stream.
func (s *RedisStore) Append(e Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	args := &backend.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"timestamp":        e.Timestamp.Format(TimestampLayout),
			"crowd_count":      e.Count,
			"status_from":      string(e.From),
			"status_to":        string(e.To),
			"green_duration_s": e.GreenDuration,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
