package domain

import (
	"time"

	"banking/internal/money"
)

type Loan struct {
	ID              int64
	AccountID       string
	Principal       money.Amount
	RepaymentAmount money.Amount
	DueDate         time.Time
	Repaid          bool
	CreatedAt       time.Time
}
