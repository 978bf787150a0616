package broker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
)

func fastPolicy(attempts int) broker.RetryPolicy {
	return broker.RetryPolicy{MaxAttempts: attempts, Backoff: time.Millisecond}
}

func TestMemoryBusKeepsOrderPerKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := broker.NewMemoryBus(4, fastPolicy(1))

	var mu sync.Mutex
	got := map[string][]string{}
	require.NoError(t, bus.Subscribe(ctx, "t", func(_ context.Context, m broker.Message) error {
		mu.Lock()
		got[m.Key] = append(got[m.Key], string(m.Value))
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		for _, key := range []string{"a", "b", "c"} {
			require.NoError(t, bus.Publish(ctx, broker.Message{Topic: "t", Key: key, Value: []byte(fmt.Sprint(i))}))
		}
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got["a"]) == 20 && len(got["b"]) == 20 && len(got["c"]) == 20
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, key := range []string{"a", "b", "c"} {
		for i, v := range got[key] {
			assert.Equal(t, fmt.Sprint(i), v, "key %s out of order", key)
		}
	}
}

func TestMemoryBusRetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := broker.NewMemoryBus(1, fastPolicy(3))
	var calls atomic.Int32
	done := make(chan struct{})
	require.NoError(t, bus.Subscribe(ctx, "t", func(context.Context, broker.Message) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, broker.Message{Topic: "t", Key: "k"}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never succeeded")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestMemoryBusDeadLettersPermanentFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := broker.NewMemoryBus(1, fastPolicy(5))
	var calls atomic.Int32
	require.NoError(t, bus.Subscribe(ctx, "t", func(context.Context, broker.Message) error {
		calls.Add(1)
		return broker.Permanent(errors.New("order not found"))
	}))

	dead := make(chan broker.Message, 1)
	require.NoError(t, bus.Subscribe(ctx, broker.DeadLetterTopic("t"), func(_ context.Context, m broker.Message) error {
		dead <- m
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, broker.Message{Topic: "t", Key: "k", Value: []byte("v")}))

	select {
	case m := <-dead:
		assert.Equal(t, "t.dlq", m.Topic)
		assert.Equal(t, "k", m.Key)
		assert.Equal(t, "order not found", m.Header(broker.HeaderDeadLetterReason))
		assert.Equal(t, "1", m.Header(broker.HeaderDeliveryAttempts))
	case <-time.After(time.Second):
		t.Fatal("message was not dead-lettered")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoryBusDeadLettersAfterExhaustingRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := broker.NewMemoryBus(1, fastPolicy(2))
	require.NoError(t, bus.Subscribe(ctx, "t", func(context.Context, broker.Message) error {
		return errors.New("still broken")
	}))
	dead := make(chan broker.Message, 1)
	require.NoError(t, bus.Subscribe(ctx, broker.DeadLetterTopic("t"), func(_ context.Context, m broker.Message) error {
		dead <- m
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, broker.Message{Topic: "t", Key: "k"}))

	select {
	case m := <-dead:
		assert.Equal(t, "2", m.Header(broker.HeaderDeliveryAttempts))
	case <-time.After(time.Second):
		t.Fatal("message was not dead-lettered")
	}
}

func TestMemoryBusStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := broker.NewMemoryBus(2, fastPolicy(1))
	require.NoError(t, bus.Subscribe(ctx, "t", func(context.Context, broker.Message) error { return nil }))

	cancel()
	bus.Wait()
}

func TestWithHeaderDoesNotMutateOriginal(t *testing.T) {
	m := broker.Message{Headers: map[string]string{"a": "1"}}
	m2 := m.WithHeader("b", "2")

	assert.Equal(t, "", m.Header("b"))
	assert.Equal(t, "2", m2.Header("b"))
	assert.Equal(t, "1", m2.Header("a"))
}
