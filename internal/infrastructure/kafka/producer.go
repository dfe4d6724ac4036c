package kafka_infra

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

type Producer interface {
	Produce(ctx context.Context, key, topic string, value []byte) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer returns a synchronous producer. Produce returns only after the
// brokers acknowledged the write, so callers can record delivery.
func NewProducer(brokerURLs []string, logger *zap.Logger) Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerURLs...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		Logger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}

	return &kafkaProducer{
		writer: writer,
		logger: logger,
	}
}

func (p *kafkaProducer) Produce(ctx context.Context, key, topic string, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}

	produceCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(produceCtx, msg); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	p.logger.Debug("Message produced to Kafka",
		zap.String("topic", topic),
		zap.String("key", key),
	)
	return nil
}

func (p *kafkaProducer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}
