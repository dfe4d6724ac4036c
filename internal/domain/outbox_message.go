package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
	OutboxStatusFailed  OutboxMessageStatus = "FAILED"
)

// OutboxMessage is a ledger event waiting to be published, written in the
// same transaction as the balance change it describes.
type OutboxMessage struct {
	ID            string
	AggregateID   string
	AggregateType string
	MessageType   string
	Topic         string
	Key           string
	Payload       []byte
	Status        OutboxMessageStatus
	Attempts      int
	CreatedAt     time.Time
	SentAt        *time.Time
}
