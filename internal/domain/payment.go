package domain

import (
	"time"

	"banking/internal/money"
)

// Payment is an append-only record of a completed transfer.
type Payment struct {
	ID         int64
	SenderID   string
	ReceiverID string
	Amount     money.Amount
	CreatedAt  time.Time
}

// PaymentView is a payment with both parties resolved to their emails.
type PaymentView struct {
	ID            int64
	SenderEmail   string
	ReceiverEmail string
	Amount        money.Amount
	CreatedAt     time.Time
}
