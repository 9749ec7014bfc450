package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"sorteos-backend/internal/common/logger"
)

// ErrLocked is returned when the key is already held.
var ErrLocked = errors.New("lock already held")

// Locker grants exclusive, non-blocking ownership of a key.
// The returned release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RaffleKey is the lock key guarding draws on one raffle.
func RaffleKey(raffleID int64) string {
	return fmt.Sprintf("lock:raffle:%d", raffleID)
}

// Local is an in-process keyed lock. It is enough for a single instance.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Redis holds keys with SET NX and a random token; release only deletes
// the key while the token still matches, so an expired lock taken over by
// another holder is never removed.
type Redis struct {
	client goredis.Cmdable
	script *goredis.Script
}

func NewRedis(client goredis.Cmdable) *Redis {
	return &Redis{client: client, script: goredis.NewScript(releaseScript)}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may already be cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			r.release(releaseCtx, key, token)
		})
	}, nil
}

// release reports whether the key was still held with token.
func (r *Redis) release(ctx context.Context, key, token string) bool {
	n, err := r.script.Run(ctx, r.client, []string{key}, token).Int64()
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		return false
	}
	if n == 0 {
		logger.Warn().Str("key", key).Msg("Lock expired before release")
		return false
	}
	return true
}
