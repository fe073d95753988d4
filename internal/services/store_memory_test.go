package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryOnceStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOnceStore(newTestClock().Now)

	require.NoError(t, store.Save(ctx, "key", []byte("value"), time.Minute))

	value, err := store.Consume(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	_, err = store.Consume(ctx, "key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryOnceStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := NewMemoryOnceStore(clock.Now)

	require.NoError(t, store.Save(ctx, "expired", []byte("a"), time.Minute))
	require.NoError(t, store.Save(ctx, "alive", []byte("b"), time.Hour))
	clock.Advance(time.Minute)

	_, err := store.Consume(ctx, "expired")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, store.Len(), "expired entry is removed on consume")

	require.NoError(t, store.Save(ctx, "expired-again", []byte("c"), time.Second))
	clock.Advance(time.Second)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestMemoryOnceStore_JanitorSweepsIndependently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newTestClock()
	store := NewMemoryOnceStore(clock.Now)
	require.NoError(t, store.Save(ctx, "abandoned", []byte("state"), time.Minute))

	store.Start(ctx, 10*time.Millisecond)
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMemoryOnceStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOnceStore(nil)
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

func TestStateService(t *testing.T) {
	ctx := context.Background()
	states := NewStateService(NewMemoryOnceStore(nil), time.Minute)

	state, err := states.GenerateState(ctx, "verifier-1")
	require.NoError(t, err)
	assert.NotEmpty(t, state)

	entry, err := states.ConsumeState(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "verifier-1", entry.Verifier)

	_, err = states.ConsumeState(ctx, state)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = states.ConsumeState(ctx, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = states.ConsumeState(ctx, "never-issued")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestStateService_ConcurrentCallbacksOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	states := NewStateService(NewMemoryOnceStore(nil), time.Minute)

	state, err := states.GenerateState(ctx, "verifier")
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := states.ConsumeState(ctx, state); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
}

func TestHandoffService(t *testing.T) {
	ctx := context.Background()
	handoffs := NewHandoffService(NewMemoryOnceStore(nil), time.Minute)

	expiresAt := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
	slot, err := handoffs.Stash(ctx, Handoff{IdentityID: "user-1", AccessToken: "token", ExpiresAt: expiresAt})
	require.NoError(t, err)

	handoff, err := handoffs.Claim(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, "user-1", handoff.IdentityID)
	assert.Equal(t, "token", handoff.AccessToken)
	assert.True(t, expiresAt.Equal(handoff.ExpiresAt))

	_, err = handoffs.Claim(ctx, slot)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = handoffs.Claim(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
