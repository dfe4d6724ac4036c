package loans_repo

import (
	"context"
	"fmt"

	"banking/internal/domain"
	"banking/internal/infrastructure/database"
	"banking/internal/money"
)

type loanRepository struct{}

func NewLoanRepository() *loanRepository {
	return &loanRepository{}
}

func (r *loanRepository) CreateTx(ctx context.Context, querier domain.Querier, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (account_id, principal, repayment_amount, due_date, repaid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := querier.QueryRowContext(ctx, query,
		loan.AccountID,
		loan.Principal,
		loan.RepaymentAmount,
		database.ToMillis(loan.DueDate),
		loan.Repaid,
		database.ToMillis(loan.CreatedAt),
	).Scan(&loan.ID)
	if err != nil {
		return fmt.Errorf("failed to create loan for account %s: %w", loan.AccountID, err)
	}
	return nil
}

// SumOutstandingTx totals the repayment amounts of loans not yet repaid.
func (r *loanRepository) SumOutstandingTx(ctx context.Context, querier domain.Querier, accountID string) (money.Amount, error) {
	var total money.Amount
	err := querier.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(repayment_amount), 0) FROM loans WHERE account_id = $1 AND repaid = FALSE`, accountID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum outstanding loans for account %s: %w", accountID, err)
	}
	return total, nil
}

func (r *loanRepository) ListByAccount(ctx context.Context, querier domain.Querier, accountID string, page domain.PageRequest) ([]domain.Loan, error) {
	query := `
		SELECT id, account_id, principal, repayment_amount, due_date, repaid, created_at
		FROM loans
		WHERE account_id = $1
		ORDER BY id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := querier.QueryContext(ctx, query, accountID, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for account %s: %w", accountID, err)
	}
	defer rows.Close()

	loans := make([]domain.Loan, 0, page.Size)
	for rows.Next() {
		var loan domain.Loan
		var dueDate, createdAt int64
		if err := rows.Scan(
			&loan.ID,
			&loan.AccountID,
			&loan.Principal,
			&loan.RepaymentAmount,
			&dueDate,
			&loan.Repaid,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loan.DueDate = database.FromMillis(dueDate)
		loan.CreatedAt = database.FromMillis(createdAt)
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loans: %w", err)
	}
	return loans, nil
}

func (r *loanRepository) CountByAccount(ctx context.Context, querier domain.Querier, accountID string) (int64, error) {
	var total int64
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE account_id = $1`, accountID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count loans for account %s: %w", accountID, err)
	}
	return total, nil
}
