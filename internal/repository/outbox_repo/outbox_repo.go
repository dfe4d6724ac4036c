package outbox_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"banking/internal/domain"
	"banking/internal/infrastructure/database"
)

type outboxRepository struct {
	driver database.Driver
}

func NewOutboxRepository(driver database.Driver) *outboxRepository {
	return &outboxRepository{driver: driver}
}

func (r *outboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (id, aggregate_id, aggregate_type, message_type, topic, key_value, payload, status, attempts, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := querier.ExecContext(ctx, query,
		msg.ID,
		msg.AggregateID,
		msg.AggregateType,
		msg.MessageType,
		msg.Topic,
		msg.Key,
		msg.Payload,
		msg.Status,
		msg.Attempts,
		database.ToMillis(msg.CreatedAt),
		database.NullMillis(msg.SentAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

// GetPendingMessagesTx claims up to limit pending messages, oldest first.
// On PostgreSQL rows locked by another poller are skipped.
func (r *outboxRepository) GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	query := `
		SELECT id, aggregate_id, aggregate_type, message_type, topic, key_value, payload, status, attempts, created_at, sent_at
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2` + r.driver.ForUpdateSkipLocked()

	rows, err := querier.QueryContext(ctx, query, domain.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		msg := domain.OutboxMessage{}
		var createdAt int64
		var sentAt sql.NullInt64
		err := rows.Scan(
			&msg.ID,
			&msg.AggregateID,
			&msg.AggregateType,
			&msg.MessageType,
			&msg.Topic,
			&msg.Key,
			&msg.Payload,
			&msg.Status,
			&msg.Attempts,
			&createdAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		msg.CreatedAt = database.FromMillis(createdAt)
		if sentAt.Valid {
			t := database.FromMillis(sentAt.Int64)
			msg.SentAt = &t
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}
	return messages, nil
}

func (r *outboxRepository) MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, sent_at = $2, attempts = attempts + 1
		WHERE id = $3
	`
	res, err := querier.ExecContext(ctx, query, domain.OutboxStatusSent, database.ToMillis(sentAt), id)
	return checkUpdated(res, err, id)
}

// RecordFailureTx counts a failed publish attempt and parks the message as
// FAILED once maxAttempts is reached.
func (r *outboxRepository) RecordFailureTx(ctx context.Context, querier domain.Querier, id string, maxAttempts int) error {
	query := `
		UPDATE outbox_messages
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $1 THEN $2 ELSE status END
		WHERE id = $3
	`
	res, err := querier.ExecContext(ctx, query, maxAttempts, domain.OutboxStatusFailed, id)
	return checkUpdated(res, err, id)
}

func checkUpdated(res sql.Result, err error, id string) error {
	if err != nil {
		return fmt.Errorf("failed to update outbox message %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox update (id %s): %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no outbox message found with id %s to update status", id)
	}
	return nil
}
