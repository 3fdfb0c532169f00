package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the exporter needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaExporter forwards published events to a Kafka topic, keyed by ticket id so
// one ticket's events stay on one partition.
type KafkaExporter struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaWriter builds a writer for the given brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafkaExporter wraps writer.
func NewKafkaExporter(writer MessageWriter, logger *zap.Logger) *KafkaExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaExporter{writer: writer, logger: logger}
}

// Register subscribes the exporter to every event type.
func (e *KafkaExporter) Register(d Dispatcher) {
	SubscribeAll(d, e.Handle)
}

// Handle encodes event as JSON and writes it.
func (e *KafkaExporter) Handle(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	e.logger.Debug("event exported", zap.String("event_type", string(event.Type)), zap.String("ticket_id", event.TicketID))
	return nil
}

// Close flushes and closes the writer.
func (e *KafkaExporter) Close() error {
	return e.writer.Close()
}
