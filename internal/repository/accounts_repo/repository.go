package accounts_repo

import (
	"context"
	"time"

	"banking/internal/domain"
	"banking/internal/money"
)

type AccountRepository interface {
	CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
	GetByEmail(ctx context.Context, querier domain.Querier, email string) (*domain.Account, error)
	GetByEmailForUpdateTx(ctx context.Context, querier domain.Querier, email string) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, querier domain.Querier, email string) (bool, error)
	UpdateBalanceTx(ctx context.Context, querier domain.Querier, accountID string, delta money.Amount, now time.Time) error
}
