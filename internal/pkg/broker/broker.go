// Package broker is the messaging port both services use: at-least-once
// delivery, ordering only within a partition key, and a dead letter topic
// for deliveries that cannot be processed.
package broker

import (
	"context"
	"errors"
)

const (
	HeaderContentType      = "content-type"
	HeaderEventType        = "event-type"
	HeaderDeadLetterReason = "x-dead-letter-reason"
	HeaderDeliveryAttempts = "x-delivery-attempts"
)

// Message is a single record on a topic. Key selects the partition, so all
// messages sharing a key are delivered in publish order.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Header returns the header value or "" when absent.
func (m Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// WithHeader returns a copy of m with key set. The original map is not mutated.
func (m Message) WithHeader(key, value string) Message {
	h := make(map[string]string, len(m.Headers)+1)
	for k, v := range m.Headers {
		h[k] = v
	}
	h[key] = value
	m.Headers = h
	return m
}

// Handler processes one delivery. A nil return acknowledges the message.
type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
}

// Subscriber starts consuming topic in the background until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, h Handler) error
}

// DeadLetterTopic names the topic that receives undeliverable messages.
func DeadLetterTopic(topic string) string {
	return topic + ".dlq"
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The delivery goes straight to
// the dead letter topic.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
