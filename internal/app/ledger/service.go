package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banking/internal/domain"
	"banking/internal/domain/event"
	"banking/internal/money"
	"banking/internal/outbox"
	"banking/internal/repository/accounts_repo"
	"banking/internal/repository/loans_repo"
	"banking/internal/repository/outbox_repo"
	"banking/internal/repository/payments_repo"
)

// LoanPolicy holds the configurable loan terms.
type LoanPolicy struct {
	RepaymentMultiplier decimal.Decimal
	// RepaymentLimit caps the sum of unpaid repayment amounts per account.
	RepaymentLimit money.Amount
	// AmountStep is the granularity, in whole units, of a loan principal.
	AmountStep int64
	// PrincipalPerYear is how much principal buys one year until due.
	PrincipalPerYear int64
}

type Service interface {
	Transfer(ctx context.Context, senderEmail, receiverEmail string, amount money.Amount) (*domain.Payment, error)
	OriginateLoan(ctx context.Context, email string, principal money.Amount) (*domain.Loan, error)
	ListPayments(ctx context.Context, email string, page domain.PageRequest) (domain.Page[domain.PaymentView], error)
	ListLoans(ctx context.Context, email string, page domain.PageRequest) (domain.Page[domain.Loan], error)
	Balance(ctx context.Context, email string) (money.Amount, error)
}

type ledgerService struct {
	db          *sql.DB
	accountRepo accounts_repo.AccountRepository
	paymentRepo payments_repo.PaymentRepository
	loanRepo    loans_repo.LoanRepository
	outboxRepo  outbox_repo.OutboxRepository
	policy      LoanPolicy
	eventsTopic string
	now         func() time.Time
	logger      *zap.Logger
}

func NewService(
	db *sql.DB,
	accountRepo accounts_repo.AccountRepository,
	paymentRepo payments_repo.PaymentRepository,
	loanRepo loans_repo.LoanRepository,
	outboxRepo outbox_repo.OutboxRepository,
	policy LoanPolicy,
	eventsTopic string,
	logger *zap.Logger,
) Service {
	return &ledgerService{
		db:          db,
		accountRepo: accountRepo,
		paymentRepo: paymentRepo,
		loanRepo:    loanRepo,
		outboxRepo:  outboxRepo,
		policy:      policy,
		eventsTopic: eventsTopic,
		now:         time.Now,
		logger:      logger,
	}
}

// Transfer moves amount from sender to receiver. Both balances, the payment
// record and its event commit together or not at all.
func (s *ledgerService) Transfer(ctx context.Context, senderEmail, receiverEmail string, amount money.Amount) (*domain.Payment, error) {
	senderEmail = domain.NormalizeEmail(senderEmail)
	receiverEmail = domain.NormalizeEmail(receiverEmail)

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: transfer amount must be positive", domain.ErrInvalidAmount)
	}
	if senderEmail == receiverEmail {
		return nil, domain.ErrSelfTransfer
	}

	var payment *domain.Payment
	err := s.inTx(ctx, "transfer", func(tx *sql.Tx) error {
		var err error
		payment, err = s.transferTx(ctx, tx, senderEmail, receiverEmail, amount)
		return err
	})
	if err != nil {
		s.logger.Info("Transfer rejected",
			zap.String("sender", senderEmail),
			zap.String("receiver", receiverEmail),
			zap.Stringer("amount", amount),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Transfer completed",
		zap.Int64("payment_id", payment.ID),
		zap.String("sender", senderEmail),
		zap.String("receiver", receiverEmail),
		zap.Stringer("amount", amount))
	return payment, nil
}

func (s *ledgerService) transferTx(ctx context.Context, tx *sql.Tx, senderEmail, receiverEmail string, amount money.Amount) (*domain.Payment, error) {
	// Lock rows in a fixed order so opposite transfers cannot deadlock.
	emails := []string{senderEmail, receiverEmail}
	sort.Strings(emails)

	locked := make(map[string]*domain.Account, 2)
	for _, email := range emails {
		account, err := s.accountRepo.GetByEmailForUpdateTx(ctx, tx, email)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) && email == receiverEmail {
				return nil, domain.ErrReceiverNotFound
			}
			return nil, err
		}
		locked[email] = account
	}
	sender, receiver := locked[senderEmail], locked[receiverEmail]

	if sender.Balance < amount {
		return nil, domain.ErrInsufficientFunds
	}

	now := s.now()
	if err := s.accountRepo.UpdateBalanceTx(ctx, tx, sender.ID, -amount, now); err != nil {
		return nil, err
	}
	if err := s.accountRepo.UpdateBalanceTx(ctx, tx, receiver.ID, amount, now); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     amount,
		CreatedAt:  now,
	}
	if err := s.paymentRepo.CreateTx(ctx, tx, payment); err != nil {
		return nil, err
	}

	msg, err := outbox.NewMessage(event.AggregatePayment, strconv.FormatInt(payment.ID, 10), event.TypePaymentCompleted, s.eventsTopic,
		event.PaymentCompletedEvent{
			PaymentID:     payment.ID,
			SenderEmail:   sender.Email,
			ReceiverEmail: receiver.Email,
			Amount:        amount,
			Timestamp:     now.UTC(),
		}, now)
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.CreateMessageTx(ctx, tx, msg); err != nil {
		return nil, err
	}
	return payment, nil
}

// ValidatePrincipal checks that principal is a positive whole multiple of
// the configured step.
func (p LoanPolicy) ValidatePrincipal(principal money.Amount) error {
	if !principal.IsPositive() || !principal.IsWhole() {
		return fmt.Errorf("%w: loan amount must be a positive whole number", domain.ErrInvalidAmount)
	}
	if p.AmountStep > 0 && principal.Units()%p.AmountStep != 0 {
		return fmt.Errorf("%w: loan amount must be a multiple of %d", domain.ErrInvalidAmount, p.AmountStep)
	}
	return nil
}

// Repayment is principal times the multiplier, rounded half-up to cents.
func (p LoanPolicy) Repayment(principal money.Amount) (money.Amount, error) {
	repayment, err := principal.MulRound(p.RepaymentMultiplier)
	if err != nil {
		// Only a product outside the cent range fails here.
		return 0, fmt.Errorf("%w: %v", domain.ErrLoanLimitExceeded, err)
	}
	return repayment, nil
}

// MaxTermYears bounds how far out a due date may land.
const MaxTermYears = 1000

// TermYears gives one year per PrincipalPerYear units of principal, rounded down.
func (p LoanPolicy) TermYears(principal money.Amount) int64 {
	if p.PrincipalPerYear <= 0 {
		return 0
	}
	return principal.Units() / p.PrincipalPerYear
}

func (p LoanPolicy) DueDate(principal money.Amount, from time.Time) time.Time {
	return from.AddDate(int(p.TermYears(principal)), 0, 0)
}

func (s *ledgerService) OriginateLoan(ctx context.Context, email string, principal money.Amount) (*domain.Loan, error) {
	email = domain.NormalizeEmail(email)

	if err := s.policy.ValidatePrincipal(principal); err != nil {
		return nil, err
	}
	repayment, err := s.policy.Repayment(principal)
	if err != nil {
		return nil, err
	}
	if repayment > s.policy.RepaymentLimit {
		s.logger.Info("Loan rejected, repayment alone exceeds limit",
			zap.String("email", email),
			zap.Stringer("principal", principal),
			zap.Stringer("repayment", repayment))
		return nil, domain.ErrLoanLimitExceeded
	}
	if years := s.policy.TermYears(principal); years > MaxTermYears {
		return nil, fmt.Errorf("%w: loan term of %d years exceeds %d", domain.ErrInvalidAmount, years, MaxTermYears)
	}

	var loan *domain.Loan
	err = s.inTx(ctx, "originate loan", func(tx *sql.Tx) error {
		var err error
		loan, err = s.originateLoanTx(ctx, tx, email, principal, repayment)
		return err
	})
	if err != nil {
		s.logger.Info("Loan rejected",
			zap.String("email", email),
			zap.Stringer("principal", principal),
			zap.Stringer("repayment", repayment),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Loan originated",
		zap.Int64("loan_id", loan.ID),
		zap.String("email", email),
		zap.Stringer("principal", principal),
		zap.Stringer("repayment", repayment),
		zap.Time("due_date", loan.DueDate))
	return loan, nil
}

func (s *ledgerService) originateLoanTx(ctx context.Context, tx *sql.Tx, email string, principal, repayment money.Amount) (*domain.Loan, error) {
	account, err := s.accountRepo.GetByEmailForUpdateTx(ctx, tx, email)
	if err != nil {
		return nil, err
	}

	outstanding, err := s.loanRepo.SumOutstandingTx(ctx, tx, account.ID)
	if err != nil {
		return nil, err
	}
	// Both operands are non-negative, so the subtraction cannot wrap.
	if repayment > s.policy.RepaymentLimit-outstanding {
		return nil, domain.ErrLoanLimitExceeded
	}

	now := s.now()
	if err := s.accountRepo.UpdateBalanceTx(ctx, tx, account.ID, principal, now); err != nil {
		return nil, err
	}

	loan := &domain.Loan{
		AccountID:       account.ID,
		Principal:       principal,
		RepaymentAmount: repayment,
		DueDate:         s.policy.DueDate(principal, now),
		Repaid:          false,
		CreatedAt:       now,
	}
	if err := s.loanRepo.CreateTx(ctx, tx, loan); err != nil {
		return nil, err
	}

	msg, err := outbox.NewMessage(event.AggregateLoan, strconv.FormatInt(loan.ID, 10), event.TypeLoanOriginated, s.eventsTopic,
		event.LoanOriginatedEvent{
			LoanID:          loan.ID,
			Email:           account.Email,
			Principal:       principal,
			RepaymentAmount: repayment,
			DueDate:         loan.DueDate.UTC(),
			Timestamp:       now.UTC(),
		}, now)
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.CreateMessageTx(ctx, tx, msg); err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *ledgerService) ListPayments(ctx context.Context, email string, page domain.PageRequest) (domain.Page[domain.PaymentView], error) {
	page = page.Normalize()
	account, err := s.account(ctx, email)
	if err != nil {
		return domain.Page[domain.PaymentView]{}, err
	}
	total, err := s.paymentRepo.CountByAccount(ctx, s.db, account.ID)
	if err != nil {
		return domain.Page[domain.PaymentView]{}, domain.Transient("count payments", err)
	}
	payments, err := s.paymentRepo.ListByAccount(ctx, s.db, account.ID, page)
	if err != nil {
		return domain.Page[domain.PaymentView]{}, domain.Transient("list payments", err)
	}
	return domain.NewPage(payments, page, total), nil
}

func (s *ledgerService) ListLoans(ctx context.Context, email string, page domain.PageRequest) (domain.Page[domain.Loan], error) {
	page = page.Normalize()
	account, err := s.account(ctx, email)
	if err != nil {
		return domain.Page[domain.Loan]{}, err
	}
	total, err := s.loanRepo.CountByAccount(ctx, s.db, account.ID)
	if err != nil {
		return domain.Page[domain.Loan]{}, domain.Transient("count loans", err)
	}
	loans, err := s.loanRepo.ListByAccount(ctx, s.db, account.ID, page)
	if err != nil {
		return domain.Page[domain.Loan]{}, domain.Transient("list loans", err)
	}
	return domain.NewPage(loans, page, total), nil
}

func (s *ledgerService) Balance(ctx context.Context, email string) (money.Amount, error) {
	account, err := s.account(ctx, email)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

func (s *ledgerService) account(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accountRepo.GetByEmail(ctx, s.db, domain.NormalizeEmail(email))
	if err != nil {
		return nil, domain.Transient("load account", err)
	}
	return account, nil
}

// inTx runs fn in a transaction, rolling back on error or panic. Failures
// that are not domain rejections come back as transient errors.
func (s *ledgerService) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", zap.String("op", op), zap.Error(err))
		return domain.Transient("begin "+op, err)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic during transaction, rolling back", zap.String("op", op), zap.Any("panic", r))
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", zap.String("op", op), zap.Error(rbErr))
		}
		return domain.Transient(op, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", zap.String("op", op), zap.Error(err))
		return domain.Transient("commit "+op, err)
	}
	return nil
}
