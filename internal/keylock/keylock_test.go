package keylock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPilot/internal/logging"
)

// exercise runs n goroutines that each take the lock and check nobody else is inside.
func exercise(t *testing.T, l Locker, key string, n int) {
	t.Helper()
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			cur := atomic.AddInt32(&inside, 1)
			if cur > atomic.LoadInt32(&maxSeen) {
				atomic.StoreInt32(&maxSeen, cur)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxSeen))
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	exercise(t, l, "AAPL/US", 20)
	assert.Equal(t, 0, l.size())
}

func TestLocal_DistinctKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	unlockA, err := l.Lock(context.Background(), "AAPL/US")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "0700/HK")
	require.NoError(t, err)
	unlockB()
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "AAPL/US")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "AAPL/US")
	assert.True(t, errors.Is(err, ErrNotAcquired))

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, l.size())
}

func newRedisLocker(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	l := NewRedis(rdb, time.Second, logging.Nop())
	l.retryWait = 2 * time.Millisecond
	return l, mr
}

func TestRedis_MutualExclusion(t *testing.T) {
	l, mr := newRedisLocker(t)
	exercise(t, l, "AAPL/US", 8)
	assert.False(t, mr.Exists(redisKeyPrefix+"AAPL/US"))
}

func TestRedis_ContextCancelled(t *testing.T) {
	l, _ := newRedisLocker(t)
	unlock, err := l.Lock(context.Background(), "AAPL/US")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "AAPL/US")
	assert.True(t, errors.Is(err, ErrNotAcquired))
}

func TestRedis_UnlockOnlyReleasesOwnToken(t *testing.T) {
	l, mr := newRedisLocker(t)
	unlock, err := l.Lock(context.Background(), "AAPL/US")
	require.NoError(t, err)

	// Simulate expiry and takeover by another instance.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(redisKeyPrefix+"AAPL/US", "someone-else"))

	unlock()
	got, err := mr.Get(redisKeyPrefix + "AAPL/US")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedis_TTLExpiryFreesKey(t *testing.T) {
	l, mr := newRedisLocker(t)
	_, err := l.Lock(context.Background(), "AAPL/US")
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisKeyPrefix+"AAPL/US"))

	mr.FastForward(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := l.Lock(ctx, "AAPL/US")
	require.NoError(t, err)
	unlock()
}

func TestRedis_SecondUnlockIsNoop(t *testing.T) {
	l, mr := newRedisLocker(t)
	unlock, err := l.Lock(context.Background(), "AAPL/US")
	require.NoError(t, err)

	unlock()
	after := mr.CommandCount()
	unlock()
	assert.Equal(t, after, mr.CommandCount())
	assert.False(t, mr.Exists(redisKeyPrefix+"AAPL/US"))
}
