package statushub

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Subscription is one client's view of an order's status events. The event
// channel is never closed; watch Done to know when to stop reading.
type Subscription struct {
	hub     *Hub
	orderID uuid.UUID
	events  chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func (s *Subscription) OrderID() uuid.UUID { return s.orderID }

func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Done() <-chan struct{} { return s.ctx.Done() }

// Err is context.DeadlineExceeded when the lifetime ran out and
// context.Canceled after Close or client disconnect.
func (s *Subscription) Err() error { return s.ctx.Err() }

// Close ends the subscription and unregisters it. Safe to call repeatedly
// and from any goroutine.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		s.hub.remove(s)
		s.hub.metrics.SubscriberRemoved(context.Background())
	})
}

// Stream calls send for each event until a terminal event has been sent,
// the subscription ends, or send fails. The subscription is closed on return.
func (s *Subscription) Stream(send func(Event) error) error {
	defer s.Close()
	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case evt := <-s.events:
			if err := send(evt); err != nil {
				return err
			}
			if evt.Status.Terminal() {
				return nil
			}
		}
	}
}
