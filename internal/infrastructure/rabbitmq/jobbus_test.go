//go:build integration
// +build integration

package rabbitmq_test

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baechuer/waitline/internal/infrastructure/rabbitmq"
	"github.com/stretchr/testify/require"
)

func setupJobBus(t *testing.T) *rabbitmq.JobBus {
	url := os.Getenv("TEST_RABBITMQ_URL")
	if url == "" {
		t.Skip("Skipping integration test: TEST_RABBITMQ_URL not set")
	}
	bus := rabbitmq.New(url, "waitline-test")
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestJobBus_Enqueue_ImmediateDeliversToHandler(t *testing.T) {
	bus := setupJobBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var calls int32
	done := make(chan struct{}, 1)
	handler := func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 2 {
			done <- struct{}{}
		}
		return nil
	}

	require.NoError(t, bus.StartWorker(ctx, "jobbus-test-immediate", handler))
	require.NoError(t, bus.Enqueue(ctx, "jobbus-test-immediate", map[string]string{"k": "v"}, 0))

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for handler invocation")
	}
}

func TestJobBus_Enqueue_DelayedDeliversAfterExpiration(t *testing.T) {
	bus := setupJobBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	delivered := make(chan time.Time, 4)
	handler := func(ctx context.Context) error {
		delivered <- time.Now()
		return nil
	}

	require.NoError(t, bus.StartWorker(ctx, "jobbus-test-delayed", handler))
	start := time.Now()
	require.NoError(t, bus.Enqueue(ctx, "jobbus-test-delayed", nil, 500*time.Millisecond))

	// drain the startup catch-up call
	<-delivered

	select {
	case at := <-delivered:
		require.True(t, at.Sub(start) >= 500*time.Millisecond)
	case <-ctx.Done():
		t.Fatal("timed out waiting for delayed delivery")
	}
}
