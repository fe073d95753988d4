package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedis піднімає Redis у процесі тесту
func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisOnceStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisOnceStore(client, "once:")

	require.NoError(t, store.Save(ctx, "key", []byte("value"), time.Minute))
	assert.True(t, mr.Exists("once:key"))

	value, err := store.Consume(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)
	assert.False(t, mr.Exists("once:key"))

	_, err = store.Consume(ctx, "key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisOnceStore_Expiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisOnceStore(client, "once:")

	require.NoError(t, store.Save(ctx, "expired", []byte("a"), time.Minute))
	require.NoError(t, store.Save(ctx, "alive", []byte("b"), time.Hour))
	assert.Equal(t, time.Minute, mr.TTL("once:expired"))

	mr.FastForward(time.Minute)

	_, err := store.Consume(ctx, "expired")
	assert.ErrorIs(t, err, ErrNotFound)

	value, err := store.Consume(ctx, "alive")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), value)
}

func TestRedisOnceStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	store := NewRedisOnceStore(client, "once:")
	require.NoError(t, store.Save(ctx, "key", []byte("value"), time.Minute))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "key"); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
}

func TestRedisOnceStore_ServerError(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisOnceStore(client, "once:")

	mr.SetError("ERR injected failure")
	err := store.Save(ctx, "key", []byte("value"), time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = store.Consume(ctx, "key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStateService_Redis(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	states := NewStateService(NewRedisOnceStore(client, "state:"), time.Minute)

	state, err := states.GenerateState(ctx, "verifier-1")
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := states.ConsumeState(ctx, state)
			if err == nil && entry.Verifier == "verifier-1" {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	_, err = states.ConsumeState(ctx, state)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRedisCSRFStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisCSRFStore(client, "csrf:", time.Hour)

	issuedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Put(ctx, CSRFEntry{Token: "token", IssuedAt: issuedAt, RequesterAddress: "10.0.0.1"}))
	assert.Equal(t, time.Hour, mr.TTL("csrf:token"))

	entry, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "token", entry.Token)
	assert.Equal(t, "10.0.0.1", entry.RequesterAddress)
	assert.True(t, issuedAt.Equal(entry.IssuedAt))

	// Get не споживає токен
	_, err = store.Get(ctx, "token")
	require.NoError(t, err)

	_, err = store.Get(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	cleaned, err := store.Sweep(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, cleaned)

	mr.FastForward(time.Hour)
	_, err = store.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCSRFGuard_RedisStore(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	clock := newTestClock()
	guard := NewCSRFGuard(NewRedisCSRFStore(client, "csrf:", time.Hour), CSRFConfig{TTL: time.Hour, Now: clock.Now})

	token, err := guard.Issue(ctx, "10.0.0.1")
	require.NoError(t, err)

	err = guard.Validate(ctx, CSRFRequest{Method: "POST", CookieToken: token, SubmittedToken: token, RequesterAddress: "10.0.0.1"})
	assert.NoError(t, err)

	err = guard.Validate(ctx, CSRFRequest{Method: "POST", CookieToken: "forged", SubmittedToken: "forged", RequesterAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrForbidden)

	clock.Advance(time.Hour)
	err = guard.Validate(ctx, CSRFRequest{Method: "POST", CookieToken: token, SubmittedToken: token, RequesterAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrForbidden)
}
