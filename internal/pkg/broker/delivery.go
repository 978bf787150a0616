package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// RetryPolicy bounds how many times a handler sees the same delivery before
// it is dead-lettered.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Backoff: 200 * time.Millisecond}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Backoff << (attempt - 1)
	if max := 30 * time.Second; d <= 0 || d > max {
		return max
	}
	return d
}

// deliver runs h until it succeeds, fails permanently, or exhausts the
// policy. Exhausted and permanent failures are published to the dead letter
// topic. A nil return means the message may be acknowledged.
func deliver(ctx context.Context, h Handler, msg Message, policy RetryPolicy, dlq Publisher) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		lastErr error
		tried   int
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		tried = attempt
		lastErr = h(ctx, msg)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			slog.ErrorContext(ctx, "message rejected permanently",
				"topic", msg.Topic, "key", msg.Key, "error", lastErr)
			break
		}

		slog.WarnContext(ctx, "message handler failed",
			"topic", msg.Topic, "key", msg.Key, "attempt", attempt, "error", lastErr)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.delay(attempt)):
		}
	}

	dead := msg.WithHeader(HeaderDeadLetterReason, lastErr.Error())
	dead = dead.WithHeader(HeaderDeliveryAttempts, strconv.Itoa(tried))
	dead.Topic = DeadLetterTopic(msg.Topic)
	if err := dlq.Publish(ctx, dead); err != nil {
		return fmt.Errorf("broker: dead-letter %s key=%s: %w", msg.Topic, msg.Key, err)
	}
	slog.ErrorContext(ctx, "message dead-lettered", "topic", msg.Topic, "key", msg.Key, "dlq", dead.Topic)
	return nil
}
