package refresh_tokens_repo

import (
	"context"
	"time"

	"banking/internal/domain"
)

type RefreshTokenRepository interface {
	UpsertTx(ctx context.Context, querier domain.Querier, token *domain.RefreshToken) error
	GetByToken(ctx context.Context, querier domain.Querier, token string) (*domain.RefreshToken, error)
	RotateTx(ctx context.Context, querier domain.Querier, accountID, oldToken, newToken string, expiresAt, now time.Time) (bool, error)
}
