package payments_repo

import (
	"context"

	"banking/internal/domain"
)

type PaymentRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error
	ListByAccount(ctx context.Context, querier domain.Querier, accountID string, page domain.PageRequest) ([]domain.PaymentView, error)
	CountByAccount(ctx context.Context, querier domain.Querier, accountID string) (int64, error)
}
