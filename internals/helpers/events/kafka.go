package events

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher keys messages by order id so one order's events stay ordered
// within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evts ...OrderEvent) error {
	if len(evts) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evts))
	for _, e := range evts {
		b, err := sonic.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", e.Event, err)
		}
		carrier := headerCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, &carrier)
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.OrderID),
			Value:   b,
			Headers: append([]kafka.Header{{Key: "event", Value: []byte(e.Event)}}, carrier...),
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d order event(s): %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// headerCarrier adapts kafka headers to otel's TextMapCarrier.
type headerCarrier []kafka.Header

func (c headerCarrier) Get(key string) string {
	for _, h := range c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = h.Key
	}
	return keys
}
