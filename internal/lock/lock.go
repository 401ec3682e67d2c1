// Package lock serializes sync passes per performance.  Two scrapes of the
// same performance must never diff against the pack set concurrently.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock stayed held by someone else for
// the whole wait.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker hands out exclusive, expiring locks by key.
type Locker interface {
	// Acquire blocks until the lock is held, wait elapses or ctx ends.  The
	// returned context is derived from ctx and is cancelled once the lock
	// is released or lost; work that needs the lock must run under it.
	// release may be called more than once.
	Acquire(ctx context.Context, key string) (held context.Context, release func(), err error)
}

// ErrLost is the cause of a held context whose lock could not be renewed.
var ErrLost = errors.New("lock: lost")

// Key is the lock key for one performance of one site.
func Key(sourceWebsite, performanceID string) string {
	return "packsync:" + sourceWebsite + ":" + performanceID
}

// RedisLocker implements Locker with SET NX PX and a token-checked delete,
// so a holder whose TTL lapsed can never release someone else's lock.  While
// held, the lock is extended every ttl/3; a pass may therefore run longer
// than ttl, and a crashed holder still frees the key after at most ttl.
type RedisLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

var extendScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return 0
`)

// NewRedisLocker returns a locker whose locks expire after ttl unless
// renewed and whose Acquire gives up after wait.
func NewRedisLocker(rdb *redis.Client, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, wait: wait, retry: 100 * time.Millisecond}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (context.Context, func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			held, release := l.hold(ctx, key, token)
			return held, release, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// hold starts the renewal loop for an acquired lock.  The held context is
// cancelled with ErrLost when the key no longer carries token, or when no
// renewal succeeded for a whole ttl.
func (l *RedisLocker) hold(parent context.Context, key, token string) (context.Context, func()) {
	held, cancel := context.WithCancelCause(parent)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		tick := time.NewTicker(l.ttl / 3)
		defer tick.Stop()
		renewed := time.Now()
		for {
			select {
			case <-held.Done():
				return
			case <-tick.C:
			}
			n, err := extendScript.Run(held, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int64()
			switch {
			case err == nil && n == 1:
				renewed = time.Now()
			case err == nil:
				cancel(fmt.Errorf("%w: %s", ErrLost, key))
				return
			case time.Since(renewed) >= l.ttl:
				cancel(fmt.Errorf("%w: %s: %v", ErrLost, key, err))
				return
			}
		}
	}()

	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancel(nil)
			<-stopped
			ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
		})
	}
}

// LocalLocker is the in-process Locker used when Redis is unavailable.  It
// only serializes passes inside one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

// NewLocalLocker returns an in-process locker; wait <= 0 waits for ctx only.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{}), wait: wait}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (context.Context, func(), error) {
	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}
	for {
		l.mu.Lock()
		done, busy := l.held[key]
		if !busy {
			done = make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			held, cancel := context.WithCancel(ctx)
			var once sync.Once
			return held, func() {
				once.Do(func() {
					cancel()
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-done:
		case <-waitCtx.Done():
			if ctx.Err() == nil {
				return nil, nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
			}
			return nil, nil, ctx.Err()
		}
	}
}
