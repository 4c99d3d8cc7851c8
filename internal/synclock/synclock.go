package synclock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants at most one holder per key until the holder releases it or
// the TTL runs out.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

func DeviceKey(deviceID int64) string {
	return fmt.Sprintf("payroll-admin:sync:device:%d", deviceID)
}

func JobKey(name string) string {
	return "payroll-admin:job:" + name
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by someone else is never released by us.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

type RedisLocker struct {
	client redis.Cmdable
	token  func() string
	logger *slog.Logger
}

type RedisOption func(*RedisLocker)

func WithTokenSource(fn func() string) RedisOption {
	return func(l *RedisLocker) {
		l.token = fn
	}
}

func NewRedisLocker(client redis.Cmdable, logger *slog.Logger, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		token:  uuid.NewString,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := l.token()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}

// LocalLocker serves single-node deployments without redis.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localLease
	clock func() time.Time
	seq   uint64
}

type localLease struct {
	id        uint64
	expiresAt time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]localLease),
		clock: time.Now,
	}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if lease, taken := l.held[key]; taken && now.Before(lease.expiresAt) {
		return nil, false, nil
	}

	l.seq++
	id := l.seq
	l.held[key] = localLease{id: id, expiresAt: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lease, taken := l.held[key]; taken && lease.id == id {
			delete(l.held, key)
		}
	}
	return release, true, nil
}
