package redislock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "labelscan:lock:"

// Compare-and-delete: a holder whose TTL lapsed must not release a lock
// taken over by someone else.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type Locker struct {
	client client
}

func New(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// NewFromURL parses a redis:// URL the way the rest of the deployment
// configures Redis.
func NewFromURL(rawURL string) (*Locker, *redis.Client, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	return New(rdb), rdb, nil
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}
	if err := l.client.Eval(ctx, releaseScript, []string{keyPrefix + key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}
