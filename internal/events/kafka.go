package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	skafka "github.com/segmentio/kafka-go"

	"rentflow-backend/internal/logger"
)

// Writer is the subset of kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// KafkaProducer publishes JSON-encoded order events to a single topic.
type KafkaProducer struct {
	writer Writer
	topic  string
}

// NewKafkaProducer creates a producer writing to topic on the given brokers.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &KafkaProducer{writer: w, topic: topic}
}

// NewKafkaProducerWithWriter allows injecting a test writer.
func NewKafkaProducerWithWriter(w Writer, topic string) *KafkaProducer {
	return &KafkaProducer{writer: w, topic: topic}
}

// Publish marshals value to JSON and writes it under key. Events for one
// order share a key, so they land on one partition in order.
func (p *KafkaProducer) Publish(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal kafka value: %w", err)
	}

	logger.ExternalServiceCall("kafka", "publish", "topic", p.topic, "key", key)
	err = p.writer.WriteMessages(ctx, skafka.Message{Key: []byte(key), Value: b})
	logger.ExternalServiceResult("kafka", "publish", err, "topic", p.topic, "key", key)
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
