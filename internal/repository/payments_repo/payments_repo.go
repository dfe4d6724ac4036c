package payments_repo

import (
	"context"
	"fmt"

	"banking/internal/domain"
	"banking/internal/infrastructure/database"
)

type paymentRepository struct{}

func NewPaymentRepository() *paymentRepository {
	return &paymentRepository{}
}

// CreateTx appends the payment and fills in its generated id.
func (r *paymentRepository) CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (sender_id, receiver_id, amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := querier.QueryRowContext(ctx, query,
		payment.SenderID,
		payment.ReceiverID,
		payment.Amount,
		database.ToMillis(payment.CreatedAt),
	).Scan(&payment.ID)
	if err != nil {
		return fmt.Errorf("failed to create payment from %s to %s: %w", payment.SenderID, payment.ReceiverID, err)
	}
	return nil
}

// ListByAccount returns payments the account sent or received, oldest first.
func (r *paymentRepository) ListByAccount(ctx context.Context, querier domain.Querier, accountID string, page domain.PageRequest) ([]domain.PaymentView, error) {
	query := `
		SELECT p.id, s.email, rc.email, p.amount, p.created_at
		FROM payments p
		JOIN accounts s ON s.id = p.sender_id
		JOIN accounts rc ON rc.id = p.receiver_id
		WHERE p.sender_id = $1 OR p.receiver_id = $1
		ORDER BY p.id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := querier.QueryContext(ctx, query, accountID, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for account %s: %w", accountID, err)
	}
	defer rows.Close()

	payments := make([]domain.PaymentView, 0, page.Size)
	for rows.Next() {
		var view domain.PaymentView
		var createdAt int64
		if err := rows.Scan(&view.ID, &view.SenderEmail, &view.ReceiverEmail, &view.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		view.CreatedAt = database.FromMillis(createdAt)
		payments = append(payments, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) CountByAccount(ctx context.Context, querier domain.Querier, accountID string) (int64, error) {
	var total int64
	err := querier.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE sender_id = $1 OR receiver_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count payments for account %s: %w", accountID, err)
	}
	return total, nil
}
