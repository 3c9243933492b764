package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// HostLocker provides mutual exclusion over host-day keys. Lock acquires all
// keys or none and honours ctx; the returned func releases them.
type HostLocker interface {
	Lock(ctx context.Context, keys []string) (release func(), err error)
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	// a global order keeps multi-day acquisitions deadlock free
	sort.Strings(out)
	return out
}

type memoryLock struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker serializes holders of the same key inside one process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memoryLock)}
}

func (l *MemoryLocker) Lock(ctx context.Context, keys []string) (func(), error) {
	keys = normalizeKeys(keys)
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := l.acquire(ctx, k); err != nil {
			l.releaseAll(held)
			return nil, err
		}
		held = append(held, k)
	}
	var once sync.Once
	return func() { once.Do(func() { l.releaseAll(held) }) }, nil
}

func (l *MemoryLocker) acquire(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &memoryLock{ch: make(chan struct{}, 1)}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.unref(key, m)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *MemoryLocker) releaseAll(keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(keys) - 1; i >= 0; i-- {
		m := l.locks[keys[i]]
		<-m.ch
		l.unref(keys[i], m)
	}
}

// unref drops a waiter or holder; the caller holds l.mu.
func (l *MemoryLocker) unref(key string, m *memoryLock) {
	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker holds host-day keys in Redis so that reservations are
// serialized across instances. Each key expires after TTL in case the
// holder dies.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, keys []string) (func(), error) {
	keys = normalizeKeys(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := l.acquire(ctx, l.prefix+k, token); err != nil {
			l.releaseAll(held, token)
			return nil, err
		}
		held = append(held, l.prefix+k)
	}
	var once sync.Once
	return func() { once.Do(func() { l.releaseAll(held, token) }) }, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLocker) releaseAll(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		// an expired key may already belong to someone else; the script only deletes our own
		_ = releaseScript.Run(ctx, l.client, []string{keys[i]}, token).Err()
	}
}
