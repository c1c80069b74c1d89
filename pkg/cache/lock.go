package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another instance")

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Locker hands out short-lived exclusive locks stored in Redis (SET NX PX).
type Locker struct {
	client lockClient
}

// Lock is a held lock; Release only deletes the key if this holder still owns it.
type Lock struct {
	client lockClient
	key    string
	token  string
}

// NewLocker constructs a Locker.
func NewLocker(client lockClient) *Locker {
	return &Locker{client: client}
}

// Acquire tries to take key for ttl without waiting.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release drops the lock.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}
