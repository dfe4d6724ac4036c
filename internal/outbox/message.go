package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"banking/internal/domain"
	"banking/internal/util"
)

// NewMessage serializes event into a pending outbox message. The aggregate
// id doubles as the Kafka key so events of one aggregate stay ordered.
func NewMessage(aggregateType, aggregateID, messageType, topic string, event any, now time.Time) (*domain.OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", messageType, err)
	}
	return &domain.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		MessageType:   messageType,
		Topic:         topic,
		Key:           aggregateID,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     now,
	}, nil
}
