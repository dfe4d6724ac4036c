package outbox_repo

import (
	"context"
	"time"

	"banking/internal/domain"
)

type OutboxRepository interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
	GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error
	RecordFailureTx(ctx context.Context, querier domain.Querier, id string, maxAttempts int) error
}
