package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EnsureTopics creates topics through the cluster controller. Topics that
// already exist are left alone.
func EnsureTopics(ctx context.Context, brokerURLs []string, topics []string, logger *zap.Logger) error {
	if len(brokerURLs) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokerURLs[0])
	if err != nil {
		return fmt.Errorf("dial kafka broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	configs := make([]kafka.TopicConfig, len(topics))
	for i, topic := range topics {
		configs[i] = kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}

	if err := controllerConn.CreateTopics(configs...); err != nil {
		if !errors.Is(err, kafka.TopicAlreadyExists) {
			return fmt.Errorf("create kafka topics: %w", err)
		}
		logger.Info("Kafka topics already exist", zap.Strings("topics", topics))
		return nil
	}
	logger.Info("Kafka topics ensured", zap.Strings("topics", topics))
	return nil
}
