package usage

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore writes each event under "<prefix><account>:<unix-ms>:<id>".
// It has no read path.
type RedisStore struct {
	client    goredis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore keeps events for ttl; zero keeps them forever.
func NewRedisStore(client goredis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: "usage:",
		ttl:       ttl,
	}
}

func (s *RedisStore) Key(ev *Event) string {
	return fmt.Sprintf("%s%s:%d:%s", s.keyPrefix, ev.Account, ev.OccurredAt.UnixMilli(), ev.ID)
}

func (s *RedisStore) Append(ctx context.Context, ev *Event) error {
	if err := s.client.Set(ctx, s.Key(ev), ev, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to append usage event: %w", err)
	}
	return nil
}
