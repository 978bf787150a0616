// Package contracts holds the messages exchanged between the order and
// payment services. Neither service imports the other's domain; this package
// is the only thing they share on the wire.
package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
)

const (
	TopicPaymentRequest  = "order.payment.request"
	TopicPaymentResponse = "payment.order.response"

	EventPaymentRequested = "PaymentRequested"
	EventPaymentSettled   = "PaymentSettled"
)

// SettlementStatus is the terminal outcome of a payment attempt.
type SettlementStatus string

const (
	SettlementCompleted SettlementStatus = "COMPLETED"
	SettlementFailed    SettlementStatus = "FAILED"
)

func (s SettlementStatus) Valid() bool {
	return s == SettlementCompleted || s == SettlementFailed
}

// PaymentRequested asks the payment side to charge the customer for an order.
type PaymentRequested struct {
	OrderID     uuid.UUID       `json:"orderId"`
	CustomerID  uuid.UUID       `json:"customerId"`
	Price       decimal.Decimal `json:"price"`
	RequestedAt time.Time       `json:"requestedAt"`
}

// PaymentSettled reports the committed outcome of a payment attempt.
type PaymentSettled struct {
	PaymentID      uuid.UUID        `json:"paymentId"`
	OrderID        uuid.UUID        `json:"orderId"`
	CustomerID     uuid.UUID        `json:"customerId"`
	Price          decimal.Decimal  `json:"price"`
	Status         SettlementStatus `json:"status"`
	FailureMessage string           `json:"failureMessage,omitempty"`
	TransactionID  string           `json:"transactionId,omitempty"`
	SettledAt      time.Time        `json:"settledAt"`
}

func (p PaymentRequested) Validate() error {
	if p.OrderID == uuid.Nil {
		return fmt.Errorf("contracts: %s: missing orderId", EventPaymentRequested)
	}
	if p.CustomerID == uuid.Nil {
		return fmt.Errorf("contracts: %s: missing customerId", EventPaymentRequested)
	}
	return nil
}

func (p PaymentSettled) Validate() error {
	if p.OrderID == uuid.Nil {
		return fmt.Errorf("contracts: %s: missing orderId", EventPaymentSettled)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("contracts: %s: unknown status %q", EventPaymentSettled, p.Status)
	}
	return nil
}

// Message encodes the request keyed by order id.
func (p PaymentRequested) Message() (broker.Message, error) {
	return encode(TopicPaymentRequest, EventPaymentRequested, p.OrderID, p)
}

// Message encodes the settlement keyed by order id.
func (p PaymentSettled) Message() (broker.Message, error) {
	return encode(TopicPaymentResponse, EventPaymentSettled, p.OrderID, p)
}

func DecodePaymentRequested(msg broker.Message) (PaymentRequested, error) {
	var p PaymentRequested
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		return p, fmt.Errorf("contracts: decode %s: %w", EventPaymentRequested, err)
	}
	return p, p.Validate()
}

func DecodePaymentSettled(msg broker.Message) (PaymentSettled, error) {
	var p PaymentSettled
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		return p, fmt.Errorf("contracts: decode %s: %w", EventPaymentSettled, err)
	}
	return p, p.Validate()
}

func encode(topic, eventType string, orderID uuid.UUID, v any) (broker.Message, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return broker.Message{}, fmt.Errorf("contracts: encode %s: %w", eventType, err)
	}
	return broker.Message{
		Topic: topic,
		Key:   orderID.String(),
		Value: b,
		Headers: map[string]string{
			broker.HeaderContentType: "application/json",
			broker.HeaderEventType:   eventType,
		},
	}, nil
}
