package slots

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"booking-assistant/internal/common/logger"
)

var ErrLockTimeout = errors.New("LOCK_TIMEOUT")

// Locker gives mutual exclusion per conversation id. Lock blocks until the
// lock is held or ctx ends; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, conversationID string) (func(), error)
}

// LocalLocker serializes turns inside one process
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[conversationID]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[conversationID] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(conversationID, kl, false)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, conversationID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(conversationID, kl, true) })
	}, nil
}

func (l *LocalLocker) release(conversationID string, kl *keyLock, held bool) {
	if held {
		<-kl.ch
	}
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, conversationID)
	}
	l.mu.Unlock()
}

const lockKeyPrefix = "booking:lock:"

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes turns across worker processes
type RedisLocker struct {
	client        redis.Cmdable
	ttl           time.Duration
	retryInterval time.Duration
	logger        logger.Logger
}

// NewRedisLocker expires abandoned locks after ttl
func NewRedisLocker(client redis.Cmdable, ttl, retryInterval time.Duration, log logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retryInterval <= 0 {
		retryInterval = 50 * time.Millisecond
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RedisLocker{client: client, ttl: ttl, retryInterval: retryInterval, logger: log}
}

func (r *RedisLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	key := lockKeyPrefix + conversationID
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", ErrStateStore, err)
		}
		if ok {
			break
		}

		select {
		case <-time.After(r.retryInterval):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, conversationID, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the turn context may already be done
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := unlockScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
				// the key still expires after ttl
				r.logger.Warn("failed to release conversation lock", map[string]interface{}{
					"conversationId": conversationID,
					"ttl":            r.ttl.String(),
					"error":          err.Error(),
				})
			}
		})
	}, nil
}
