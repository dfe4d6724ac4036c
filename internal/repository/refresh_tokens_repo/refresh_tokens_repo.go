package refresh_tokens_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"banking/internal/domain"
	"banking/internal/infrastructure/database"
)

type refreshTokenRepository struct{}

func NewRefreshTokenRepository() *refreshTokenRepository {
	return &refreshTokenRepository{}
}

// UpsertTx stores token as the only refresh token of its account, replacing
// any previous one in a single statement.
func (r *refreshTokenRepository) UpsertTx(ctx context.Context, querier domain.Querier, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (account_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE
		SET token = excluded.token, expires_at = excluded.expires_at, created_at = excluded.created_at
	`
	_, err := querier.ExecContext(ctx, query,
		token.AccountID,
		token.Token,
		database.ToMillis(token.ExpiresAt),
		database.ToMillis(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert refresh token for account %s: %w", token.AccountID, err)
	}
	return nil
}

func (r *refreshTokenRepository) GetByToken(ctx context.Context, querier domain.Querier, token string) (*domain.RefreshToken, error) {
	query := `
		SELECT rt.account_id, a.email, rt.token, rt.expires_at, rt.created_at
		FROM refresh_tokens rt
		JOIN accounts a ON a.id = rt.account_id
		WHERE rt.token = $1
	`
	record := &domain.RefreshToken{}
	var expiresAt, createdAt int64
	err := querier.QueryRowContext(ctx, query, token).Scan(
		&record.AccountID,
		&record.Email,
		&record.Token,
		&expiresAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: refresh token is not on record", domain.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	record.ExpiresAt = database.FromMillis(expiresAt)
	record.CreatedAt = database.FromMillis(createdAt)
	return record, nil
}

// RotateTx replaces oldToken with newToken only if oldToken is still the
// account's current token. It reports false when another caller rotated first.
func (r *refreshTokenRepository) RotateTx(ctx context.Context, querier domain.Querier, accountID, oldToken, newToken string, expiresAt, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET token = $1, expires_at = $2, created_at = $3
		WHERE account_id = $4 AND token = $5
	`
	res, err := querier.ExecContext(ctx, query, newToken, database.ToMillis(expiresAt), database.ToMillis(now), accountID, oldToken)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token for account %s: %w", accountID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}
