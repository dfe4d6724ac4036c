package event

import (
	"time"

	"banking/internal/money"
)

const (
	TypePaymentCompleted = "payment.completed"
	TypeLoanOriginated   = "loan.originated"

	AggregatePayment = "payment"
	AggregateLoan    = "loan"
)

type PaymentCompletedEvent struct {
	PaymentID     int64        `json:"payment_id"`
	SenderEmail   string       `json:"sender_email"`
	ReceiverEmail string       `json:"receiver_email"`
	Amount        money.Amount `json:"amount"`
	Timestamp     time.Time    `json:"timestamp"`
}

type LoanOriginatedEvent struct {
	LoanID          int64        `json:"loan_id"`
	Email           string       `json:"email"`
	Principal       money.Amount `json:"principal"`
	RepaymentAmount money.Amount `json:"repayment_amount"`
	DueDate         time.Time    `json:"due_date"`
	Timestamp       time.Time    `json:"timestamp"`
}
