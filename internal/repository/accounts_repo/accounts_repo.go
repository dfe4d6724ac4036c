package accounts_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"banking/internal/domain"
	"banking/internal/infrastructure/database"
	"banking/internal/money"
)

const accountColumns = `id, email, password_hash, balance, roles, created_at, updated_at`

type accountRepository struct {
	driver database.Driver
}

func NewAccountRepository(driver database.Driver) *accountRepository {
	return &accountRepository{driver: driver}
}

func (r *accountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, balance, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := querier.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Balance,
		int64(account.Roles),
		database.ToMillis(account.CreatedAt),
		database.ToMillis(account.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrIdentityConflict
		}
		return fmt.Errorf("failed to create account for %s: %w", account.Email, err)
	}
	return nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, querier domain.Querier, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanOne(querier.QueryRowContext(ctx, query, email), email)
}

// GetByEmailForUpdateTx loads the account and locks its row until the
// surrounding transaction ends.
func (r *accountRepository) GetByEmailForUpdateTx(ctx context.Context, querier domain.Querier, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1` + r.driver.ForUpdate()
	return r.scanOne(querier.QueryRowContext(ctx, query, email), email)
}

func (r *accountRepository) ExistsByEmail(ctx context.Context, querier domain.Querier, email string) (bool, error) {
	var exists bool
	err := querier.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account %s: %w", email, err)
	}
	return exists, nil
}

// UpdateBalanceTx adds delta to the balance. The guard in the WHERE clause
// keeps the balance non-negative even if the caller skipped its own check.
func (r *accountRepository) UpdateBalanceTx(ctx context.Context, querier domain.Querier, accountID string, delta money.Amount, now time.Time) error {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3 AND balance + $1 >= 0
	`
	res, err := querier.ExecContext(ctx, query, delta, database.ToMillis(now), accountID)
	if err != nil {
		return fmt.Errorf("failed to update account balance for %s: %w", accountID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var exists bool
	if err := querier.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check account %s: %w", accountID, err)
	}
	if !exists {
		return domain.ErrAccountNotFound
	}
	return domain.ErrInsufficientFunds
}

func (r *accountRepository) scanOne(row *sql.Row, email string) (*domain.Account, error) {
	account := &domain.Account{}
	var roles, createdAt, updatedAt int64
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Balance,
		&roles,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %s: %w", email, err)
	}
	account.Roles = domain.Role(roles)
	account.CreatedAt = database.FromMillis(createdAt)
	account.UpdatedAt = database.FromMillis(updatedAt)
	return account, nil
}
