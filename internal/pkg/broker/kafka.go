package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures both the producer and the consumer groups.
type KafkaConfig struct {
	Brokers     []string
	GroupID     string
	MinBytes    int
	MaxBytes    int
	MaxWait     time.Duration
	StartOffset int64
	Retry       RetryPolicy
}

func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:     []string{"localhost:9092"},
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
		Retry:       DefaultRetryPolicy(),
	}
}

func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: brokers cannot be empty")
	}
	for i, b := range c.Brokers {
		if !strings.Contains(b, ":") {
			return fmt.Errorf("kafka: broker[%d] %q must be host:port", i, b)
		}
	}
	if c.GroupID == "" {
		return errors.New("kafka: group id cannot be empty")
	}
	return nil
}

// KafkaPublisher writes messages with the hash balancer so every message for
// one key lands on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msgs ...Message) error {
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km := kafka.Message{
			Topic: m.Topic,
			Key:   []byte(m.Key),
			Value: m.Value,
		}
		for k, v := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		out = append(out, km)
	}
	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		return fmt.Errorf("kafka: publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaSubscriber consumes topics as part of a consumer group. Offsets are
// committed only after the handler succeeded or the message was
// dead-lettered, which gives at-least-once delivery.
type KafkaSubscriber struct {
	cfg KafkaConfig
	dlq Publisher

	mu      sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
}

func NewKafkaSubscriber(cfg KafkaConfig, dlq Publisher) (*KafkaSubscriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &KafkaSubscriber{cfg: cfg, dlq: dlq}, nil
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, topic string, h Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     s.cfg.Brokers,
		GroupID:     s.cfg.GroupID,
		Topic:       topic,
		MinBytes:    s.cfg.MinBytes,
		MaxBytes:    s.cfg.MaxBytes,
		MaxWait:     s.cfg.MaxWait,
		StartOffset: s.cfg.StartOffset,
	})

	s.mu.Lock()
	s.readers = append(s.readers, reader)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consume(ctx, reader, h)
	}()

	slog.InfoContext(ctx, "kafka consumer started", "topic", topic, "group", s.cfg.GroupID)
	return nil
}

func (s *KafkaSubscriber) consume(ctx context.Context, reader *kafka.Reader, h Handler) {
	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			slog.ErrorContext(ctx, "kafka fetch failed", "topic", reader.Config().Topic, "error", err)
			continue
		}

		msg := Message{
			Topic:   km.Topic,
			Key:     string(km.Key),
			Value:   km.Value,
			Headers: make(map[string]string, len(km.Headers)),
		}
		for _, hd := range km.Headers {
			msg.Headers[hd.Key] = string(hd.Value)
		}

		// A failed dead-letter publish must not be committed past, so the
		// whole delivery is repeated until it goes through.
		for {
			err := deliver(ctx, h, msg, s.cfg.Retry, s.dlq)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			slog.ErrorContext(ctx, "kafka delivery failed, retrying", "topic", msg.Topic, "key", msg.Key, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.Retry.delay(s.cfg.Retry.MaxAttempts)):
			}
		}

		if err := reader.CommitMessages(ctx, km); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "kafka commit failed", "topic", km.Topic, "offset", km.Offset, "error", err)
		}
	}
}

// Close stops every reader and waits for the consume loops to exit.
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	readers := s.readers
	s.readers = nil
	s.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()
	return errors.Join(errs...)
}
