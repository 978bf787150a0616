package broker

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
)

// MemoryBus is an in-process broker with per-key ordering. Each subscription
// owns a fixed set of partitions; a message is routed to the partition chosen
// by hashing its key, so messages for the same key are handled sequentially
// while different keys run concurrently.
//
// Messages published to a topic with no subscribers are dropped.
type MemoryBus struct {
	mu         sync.RWMutex
	subs       map[string][]*memorySub
	partitions int
	policy     RetryPolicy
	wg         sync.WaitGroup
}

type memorySub struct {
	queues []chan Message
}

func NewMemoryBus(partitions int, policy RetryPolicy) *MemoryBus {
	if partitions < 1 {
		partitions = 1
	}
	return &MemoryBus{
		subs:       make(map[string][]*memorySub),
		partitions: partitions,
		policy:     policy,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, msgs ...Message) error {
	for _, msg := range msgs {
		b.mu.RLock()
		subs := b.subs[msg.Topic]
		b.mu.RUnlock()

		if len(subs) == 0 {
			slog.DebugContext(ctx, "memory bus: no subscribers", "topic", msg.Topic, "key", msg.Key)
			continue
		}
		for _, s := range subs {
			q := s.queues[partitionFor(msg.Key, len(s.queues))]
			select {
			case q <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string, h Handler) error {
	s := &memorySub{queues: make([]chan Message, b.partitions)}
	for i := range s.queues {
		s.queues[i] = make(chan Message, 64)
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	for _, q := range s.queues {
		b.wg.Add(1)
		go func(q chan Message) {
			defer b.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-q:
					if err := deliver(ctx, h, msg, b.policy, b); err != nil {
						slog.ErrorContext(ctx, "memory bus: delivery aborted", "topic", msg.Topic, "key", msg.Key, "error", err)
					}
				}
			}
		}(q)
	}

	go func() {
		<-ctx.Done()
		b.remove(topic, s)
	}()
	return nil
}

// Wait blocks until every partition worker has stopped. Workers stop when
// their subscription context is cancelled.
func (b *MemoryBus) Wait() {
	b.wg.Wait()
}

func (b *MemoryBus) remove(topic string, target *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, s := range subs {
		if s == target {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

func partitionFor(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
