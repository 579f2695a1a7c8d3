package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/infrastructure/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBus(t *testing.T) *redis.Bus {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.New(mr.Addr(), "", 0)
}

type cachedRow struct {
	PartyID string `json:"partyID"`
	Row     int    `json:"row"`
}

func TestBus_CacheSetGet_RoundTrips(t *testing.T) {
	bus := setupBus(t)
	ctx := context.Background()

	in := cachedRow{PartyID: "p1", Row: 2}
	require.NoError(t, bus.CacheSet(ctx, "k", in, time.Minute))

	var out cachedRow
	require.NoError(t, bus.CacheGet(ctx, "k", &out))
	assert.Equal(t, in, out)
}

func TestBus_CacheGet_MissReturnsSentinel(t *testing.T) {
	bus := setupBus(t)
	ctx := context.Background()

	var out map[string]string
	err := bus.CacheGet(ctx, "missing", &out)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestBus_PublishSubscribe_DeliversMessage(t *testing.T) {
	bus := setupBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "chan-a")
	require.NoError(t, err)
	defer sub.Close()

	// miniredis delivers synchronously via its own pub/sub loop but the
	// client-side Receive/Channel plumbing still needs a moment to attach.
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, bus.Publish(ctx, "chan-a", map[string]string{"hello": "world"}))

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, "chan-a", msg.Channel)
		assert.Contains(t, string(msg.Payload), "hello")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestBus_Unsubscribe_StopsDelivery(t *testing.T) {
	bus := setupBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "chan-b")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, sub.Unsubscribe(ctx, "chan-b"))
	require.NoError(t, bus.Publish(ctx, "chan-b", "ignored"))

	select {
	case _, ok := <-sub.Messages():
		if ok {
			t.Fatal("did not expect a message after unsubscribe")
		}
	case <-time.After(200 * time.Millisecond):
		// no message arrived, as expected
	}
}
