// Package kafka publishes quote batches to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"stockdash/internal/provider"
)

// Config holds the broker settings.
type Config struct {
	Brokers    []string
	Topic      string
	MaxRetries int
}

// Writer is the subset of *kafkago.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes every batch as one JSON message keyed by batch sequence.
type Publisher struct {
	w     Writer
	topic string
}

// New creates a publisher backed by a kafka-go Writer.
func New(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: no topic configured")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafkago.RequireOne,
		MaxAttempts:            cfg.MaxRetries,
		BatchTimeout:           50 * time.Millisecond,
	}
	log.Printf("kafka: publisher created, brokers=%v topic=%s", cfg.Brokers, cfg.Topic)
	return &Publisher{w: w, topic: cfg.Topic}, nil
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(w Writer, topic string) *Publisher {
	return &Publisher{w: w, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, b provider.Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("kafka: marshal batch: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(strconv.FormatUint(b.Seq, 10)),
		Value: data,
		Time:  b.CompletedAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }
