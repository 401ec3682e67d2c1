package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesByKey(t *testing.T) {
	l := NewLocalLocker(0)
	var inFlight, maxSeen int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := l.Acquire(context.Background(), Key("site", "perf"))
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	l := NewLocalLocker(50 * time.Millisecond)
	_, a, err := l.Acquire(context.Background(), Key("site", "p1"))
	require.NoError(t, err)
	defer a()

	_, b, err := l.Acquire(context.Background(), Key("site", "p2"))
	require.NoError(t, err)
	b()
}

func TestLocalLockerWaitExpires(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	held, release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	_, _, err = l.Acquire(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()
	release()
	assert.Error(t, held.Err(), "releasing ends the held context")
	_, again, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	again()
}

func TestLocalLockerHonoursCancel(t *testing.T) {
	l := NewLocalLocker(0)
	_, release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
