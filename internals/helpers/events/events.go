// Package events publishes payment-order lifecycle events for downstream
// consumers such as the voucher notification sender.
package events

import (
	"context"
	"time"
)

type Type string

const (
	OrderCreated   Type = "order.created"
	OrderPaid      Type = "order.paid"
	OrderCancelled Type = "order.cancelled"
	OrderExpired   Type = "order.expired"
)

type OrderEvent struct {
	Event       Type      `json:"event"`
	OrderID     string    `json:"orderId"`
	OrderNumber int64     `json:"orderNumber"`
	Voucher     string    `json:"voucher"`
	State       string    `json:"state"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Reference   string    `json:"paymentReference,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...OrderEvent) error
	Close() error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ...OrderEvent) error { return nil }
func (NoopPublisher) Close() error                                 { return nil }
