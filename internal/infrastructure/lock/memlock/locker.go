// Package memlock is a process-local lock used when Redis is not configured.
// It only serializes requests that reach the same API instance.
package memlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	token   string
	expires time.Time
}

type Locker struct {
	mu   sync.Mutex
	held map[string]entry
	now  func() time.Time
}

func New() *Locker {
	return &Locker{
		held: make(map[string]entry),
		now:  time.Now,
	}
}

func (l *Locker) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if current, ok := l.held[key]; ok && now.Before(current.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = entry{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *Locker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.held[key]; ok && current.token == token {
		delete(l.held, key)
	}
	return nil
}
