package loans_repo

import (
	"context"

	"banking/internal/domain"
	"banking/internal/money"
)

type LoanRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, loan *domain.Loan) error
	SumOutstandingTx(ctx context.Context, querier domain.Querier, accountID string) (money.Amount, error)
	ListByAccount(ctx context.Context, querier domain.Querier, accountID string, page domain.PageRequest) ([]domain.Loan, error)
	CountByAccount(ctx context.Context, querier domain.Querier, accountID string) (int64, error)
}
