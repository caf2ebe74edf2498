package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	Brokers []string
	Topic   string
	// WriteTimeout bounds a single write. Default: 10 seconds
	WriteTimeout time.Duration
}

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes audit events to a Kafka topic, keyed by session id so one
// visitor's events stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: false,
	}
	logger.Info("Kafka audit sink created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return newKafkaSink(writer, logger), nil
}

func newKafkaSink(w messageWriter, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{writer: w, logger: logger.Named("kafka-audit")}
}

func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("kafka sink is closed")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	key := event.SessionID
	if key == "" {
		key = event.ID
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("failed to write audit event to Kafka",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return fmt.Errorf("failed to write to Kafka: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

func (s *KafkaSink) Name() string { return "kafka" }
