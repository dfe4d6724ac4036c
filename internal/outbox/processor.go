package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"banking/internal/domain"
	kafka_infra "banking/internal/infrastructure/kafka"
)

type OutboxRepository interface {
	GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error
	RecordFailureTx(ctx context.Context, querier domain.Querier, id string, maxAttempts int) error
}

type ProcessorConfig struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Processor relays committed outbox messages to Kafka. Delivery is at least
// once: a crash between produce and commit republishes the batch.
type Processor struct {
	db         *sql.DB
	outboxRepo OutboxRepository
	producer   kafka_infra.Producer
	cfg        ProcessorConfig
	now        func() time.Time
	logger     *zap.Logger
}

func NewProcessor(
	db *sql.DB,
	outboxRepo OutboxRepository,
	producer kafka_infra.Producer,
	cfg ProcessorConfig,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		db:         db,
		outboxRepo: outboxRepo,
		producer:   producer,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("Starting outbox processor", zap.Duration("poll_interval", p.cfg.PollInterval))
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Outbox batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes one batch of pending messages and returns how many
// were delivered. Status updates for the whole batch commit together.
func (p *Processor) ProcessBatch(ctx context.Context) (sent int, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	queryCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
	messages, err := p.outboxRepo.GetPendingMessagesTx(queryCtx, tx, p.cfg.BatchSize)
	cancel()
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, tx.Commit()
	}
	p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		if produceErr := p.producer.Produce(ctx, msg.Key, msg.Topic, msg.Payload); produceErr != nil {
			p.logger.Warn("Failed to publish outbox message",
				zap.String("message_id", msg.ID),
				zap.String("message_type", msg.MessageType),
				zap.Int("attempt", msg.Attempts+1),
				zap.Error(produceErr))
			if err = p.outboxRepo.RecordFailureTx(ctx, tx, msg.ID, p.cfg.MaxAttempts); err != nil {
				return 0, err
			}
			if msg.Attempts+1 >= p.cfg.MaxAttempts {
				p.logger.Error("Outbox message parked after repeated failures", zap.String("message_id", msg.ID))
			}
			continue
		}
		if err = p.outboxRepo.MarkSentTx(ctx, tx, msg.ID, p.now()); err != nil {
			return 0, err
		}
		sent++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox transaction: %w", err)
	}
	if sent > 0 {
		p.logger.Info("Outbox messages published", zap.Int("sent", sent), zap.Int("batch", len(messages)))
	}
	return sent, nil
}
