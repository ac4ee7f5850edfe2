package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, ttl), mr
}

func TestWithSlotLock_RunsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t, 5*time.Second)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	key := SlotKey(9, at)

	called := false
	err := locker.WithSlotLock(context.Background(), 9, at, func(ctx context.Context) error {
		called = true
		assert.True(t, mr.Exists(key), "lock key should exist inside the critical section")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, mr.Exists(key), "lock key should be released")
}

func TestWithSlotLock_ContendedSlot(t *testing.T) {
	locker, _ := newTestLocker(t, 5*time.Second)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	err := locker.WithSlotLock(context.Background(), 9, at, func(ctx context.Context) error {
		inner := locker.WithSlotLock(ctx, 9, at, func(context.Context) error {
			t.Fatal("nested critical section must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		// another provider, or the same provider at another time, is independent
		assert.NoError(t, locker.WithSlotLock(ctx, 10, at, func(context.Context) error { return nil }))
		assert.NoError(t, locker.WithSlotLock(ctx, 9, at.Add(time.Minute), func(context.Context) error { return nil }))
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLock_PropagatesErrorAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t, 5*time.Second)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), 9, at, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(SlotKey(9, at)))
}

func TestWithSlotLock_DoesNotReleaseForeignToken(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	key := SlotKey(9, at)

	err := locker.WithSlotLock(context.Background(), 9, at, func(context.Context) error {
		// the lock expires and another holder takes the key
		mr.FastForward(2 * time.Second)
		require.NoError(t, mr.Set(key, "someone-else"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestSlotKey_NormalizesZone(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	other := at.In(time.FixedZone("UTC+2", 2*60*60))
	assert.Equal(t, SlotKey(9, at), SlotKey(9, other))
}

func TestNoopLocker(t *testing.T) {
	called := false
	err := NoopLocker{}.WithSlotLock(context.Background(), 1, time.Now(), func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
