package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banking/internal/domain"
	"banking/internal/domain/event"
	"banking/internal/infrastructure/database"
	"banking/internal/infrastructure/database/databasetest"
	"banking/internal/money"
	"banking/internal/repository/accounts_repo"
	"banking/internal/repository/loans_repo"
	"banking/internal/repository/outbox_repo"
	"banking/internal/repository/payments_repo"
)

var defaultPolicy = LoanPolicy{
	RepaymentMultiplier: decimal.RequireFromString("1.1"),
	RepaymentLimit:      money.FromUnits(100000),
	AmountStep:          500,
	PrincipalPerYear:    500,
}

type fixture struct {
	db      *sql.DB
	service *ledgerService
	clock   time.Time
}

func newFixture(t *testing.T, policy LoanPolicy) *fixture {
	t.Helper()
	db := databasetest.Open(t)
	svc := NewService(
		db,
		accounts_repo.NewAccountRepository(database.SQLite),
		payments_repo.NewPaymentRepository(),
		loans_repo.NewLoanRepository(),
		outbox_repo.NewOutboxRepository(database.SQLite),
		policy,
		"ledger_events",
		zap.NewNop(),
	).(*ledgerService)
	f := &fixture{db: db, service: svc, clock: time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC)}
	svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) seed(t *testing.T, id, email string, balance money.Amount) {
	t.Helper()
	err := accounts_repo.NewAccountRepository(database.SQLite).CreateAccountTx(context.Background(), f.db, &domain.Account{
		ID: id, Email: email, PasswordHash: "h", Balance: balance, Roles: domain.DefaultRoles, CreatedAt: f.clock, UpdatedAt: f.clock,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", email, err)
	}
}

func (f *fixture) balance(t *testing.T, email string) money.Amount {
	t.Helper()
	b, err := f.service.Balance(context.Background(), email)
	if err != nil {
		t.Fatalf("balance %s: %v", email, err)
	}
	return b
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestTransfer(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	f.seed(t, "a", "ann@example.com", money.MustParse("100.00"))
	f.seed(t, "b", "bob@example.com", money.Zero)

	payment, err := f.service.Transfer(context.Background(), "ann@example.com", "BOB@example.com", money.MustParse("40.25"))
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if payment.ID == 0 || payment.SenderID != "a" || payment.ReceiverID != "b" {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if got := f.balance(t, "ann@example.com"); got != money.MustParse("59.75") {
		t.Fatalf("expected sender 59.75, got %s", got)
	}
	if got := f.balance(t, "bob@example.com"); got != money.MustParse("40.25") {
		t.Fatalf("expected receiver 40.25, got %s", got)
	}

	var msgType string
	var payload []byte
	if err := f.db.QueryRow(`SELECT message_type, payload FROM outbox_messages`).Scan(&msgType, &payload); err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if msgType != event.TypePaymentCompleted {
		t.Fatalf("unexpected message type %s", msgType)
	}
	var evt event.PaymentCompletedEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.PaymentID != payment.ID || evt.Amount != money.MustParse("40.25") || evt.ReceiverEmail != "bob@example.com" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestTransferRejections(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	f.seed(t, "a", "ann@example.com", money.MustParse("10.00"))
	f.seed(t, "b", "bob@example.com", money.Zero)
	ctx := context.Background()

	tests := []struct {
		name     string
		sender   string
		receiver string
		amount   money.Amount
		want     error
	}{
		{name: "insufficient", sender: "ann@example.com", receiver: "bob@example.com", amount: money.MustParse("10.01"), want: domain.ErrInsufficientFunds},
		{name: "self", sender: "ann@example.com", receiver: "Ann@example.com", amount: money.MustParse("1"), want: domain.ErrSelfTransfer},
		{name: "zero", sender: "ann@example.com", receiver: "bob@example.com", amount: 0, want: domain.ErrInvalidAmount},
		{name: "negative", sender: "ann@example.com", receiver: "bob@example.com", amount: -100, want: domain.ErrInvalidAmount},
		{name: "unknown receiver", sender: "ann@example.com", receiver: "zed@example.com", amount: money.MustParse("1"), want: domain.ErrReceiverNotFound},
		{name: "unknown sender", sender: "aaa@example.com", receiver: "bob@example.com", amount: money.MustParse("1"), want: domain.ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Transfer(ctx, tt.sender, tt.receiver, tt.amount)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if got := f.balance(t, "ann@example.com"); got != money.MustParse("10.00") {
		t.Fatalf("rejected transfers must not touch the sender, got %s", got)
	}
	if got := f.balance(t, "bob@example.com"); got != 0 {
		t.Fatalf("rejected transfers must not touch the receiver, got %s", got)
	}
	if n := f.count(t, "payments"); n != 0 {
		t.Fatalf("expected no payments, got %d", n)
	}
	if n := f.count(t, "outbox_messages"); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestTransferSameAmountTwice(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	f.seed(t, "a", "ann@example.com", money.MustParse("1.00"))
	f.seed(t, "b", "bob@example.com", money.Zero)
	ctx := context.Background()

	if _, err := f.service.Transfer(ctx, "ann@example.com", "bob@example.com", money.MustParse("1.00")); err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	if _, err := f.service.Transfer(ctx, "ann@example.com", "bob@example.com", money.MustParse("1.00")); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := f.balance(t, "ann@example.com"); got != 0 {
		t.Fatalf("expected 0.00, got %s", got)
	}
	if got := f.balance(t, "bob@example.com"); got != money.MustParse("1.00") {
		t.Fatalf("expected 1.00, got %s", got)
	}
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	f.seed(t, "a", "ann@example.com", money.MustParse("100.00"))
	f.seed(t, "b", "bob@example.com", money.Zero)
	f.seed(t, "c", "cat@example.com", money.Zero)

	receivers := []string{"bob@example.com", "cat@example.com"}
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
	)
	for _, receiver := range receivers {
		wg.Add(1)
		go func(receiver string) {
			defer wg.Done()
			_, err := f.service.Transfer(context.Background(), "ann@example.com", receiver, money.MustParse("60.00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(receiver)
	}
	wg.Wait()

	if successes != 1 || insufficient != 1 {
		t.Fatalf("expected one success and one rejection, got %d/%d", successes, insufficient)
	}
	if got := f.balance(t, "ann@example.com"); got != money.MustParse("40.00") {
		t.Fatalf("expected 40.00 left, got %s", got)
	}
	total := f.balance(t, "bob@example.com") + f.balance(t, "cat@example.com")
	if total != money.MustParse("60.00") {
		t.Fatalf("expected 60.00 received in total, got %s", total)
	}
}

func TestOriginateLoan(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	f.seed(t, "a", "ann@example.com", money.Zero)

	loan, err := f.service.OriginateLoan(context.Background(), "ann@example.com", money.FromUnits(500))
	if err != nil {
		t.Fatalf("originate: %v", err)
	}
	if loan.ID == 0 || loan.Repaid {
		t.Fatalf("unexpected loan %+v", loan)
	}
	if loan.RepaymentAmount != money.FromUnits(550) {
		t.Fatalf("expected repayment 550.00, got %s", loan.RepaymentAmount)
	}
	if want := f.clock.AddDate(1, 0, 0); !loan.DueDate.Equal(want) {
		t.Fatalf("expected due date %v, got %v", want, loan.DueDate)
	}
	if got := f.balance(t, "ann@example.com"); got != money.FromUnits(500) {
		t.Fatalf("expected balance 500.00, got %s", got)
	}

	page, err := f.service.ListLoans(context.Background(), "ann@example.com", domain.PageRequest{})
	if err != nil {
		t.Fatalf("list loans: %v", err)
	}
	if page.TotalElements != 1 || page.Content[0].RepaymentAmount != money.FromUnits(550) {
		t.Fatalf("unexpected loan page %+v", page)
	}

	var msgType string
	if err := f.db.QueryRow(`SELECT message_type FROM outbox_messages`).Scan(&msgType); err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if msgType != event.TypeLoanOriginated {
		t.Fatalf("unexpected message type %s", msgType)
	}
}

func TestLoanDueDateScalesWithPrincipal(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	f.seed(t, "a", "ann@example.com", money.Zero)

	loan, err := f.service.OriginateLoan(context.Background(), "ann@example.com", money.FromUnits(2500))
	if err != nil {
		t.Fatalf("originate: %v", err)
	}
	if want := f.clock.AddDate(5, 0, 0); !loan.DueDate.Equal(want) {
		t.Fatalf("expected due date %v, got %v", want, loan.DueDate)
	}
}

func TestLoanCap(t *testing.T) {
	tests := []struct {
		name     string
		limit    money.Amount
		existing []int64
		next     int64
		wantOK   bool
	}{
		{name: "first loan under cap", limit: money.FromUnits(1100), next: 500, wantOK: true},
		{name: "exactly at cap", limit: money.FromUnits(1100), existing: []int64{500}, next: 500, wantOK: true},
		{name: "over cap", limit: money.FromUnits(1100), existing: []int64{500, 500}, next: 500, wantOK: false},
		{name: "single loan over cap", limit: money.FromUnits(1000), next: 1000, wantOK: false},
		{name: "one cent short", limit: money.MustParse("1099.99"), existing: []int64{500}, next: 500, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := defaultPolicy
			policy.RepaymentLimit = tt.limit
			f := newFixture(t, policy)
			f.seed(t, "a", "ann@example.com", money.Zero)
			ctx := context.Background()

			for _, units := range tt.existing {
				if _, err := f.service.OriginateLoan(ctx, "ann@example.com", money.FromUnits(units)); err != nil {
					t.Fatalf("seed loan: %v", err)
				}
			}
			before := f.balance(t, "ann@example.com")

			_, err := f.service.OriginateLoan(ctx, "ann@example.com", money.FromUnits(tt.next))
			if tt.wantOK {
				if err != nil {
					t.Fatalf("expected loan to be granted, got %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrLoanLimitExceeded) {
				t.Fatalf("expected ErrLoanLimitExceeded, got %v", err)
			}
			if got := f.balance(t, "ann@example.com"); got != before {
				t.Fatalf("rejected loan changed balance from %s to %s", before, got)
			}
		})
	}
}

func TestLoanCapHoldsForHugePrincipals(t *testing.T) {
	// Repayment of 167697673397359*500 units at 1.1 sits just under MaxInt64
	// cents, so adding it to an existing obligation would wrap.
	nearMax := money.FromUnits(167697673397359 * 500)
	maxStep := money.Amount(math.MaxInt64 / 50000 * 50000)

	tests := []struct {
		name             string
		principalPerYear int64
		principal        money.Amount
	}{
		{name: "sum would overflow", principalPerYear: 1_000_000_000_000_000, principal: nearMax},
		{name: "default term policy", principalPerYear: 500, principal: nearMax},
		{name: "repayment outside cent range", principalPerYear: 1_000_000_000_000_000, principal: maxStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := defaultPolicy
			policy.PrincipalPerYear = tt.principalPerYear
			f := newFixture(t, policy)
			f.seed(t, "a", "ann@example.com", money.Zero)
			ctx := context.Background()

			if _, err := f.service.OriginateLoan(ctx, "ann@example.com", money.FromUnits(500)); err != nil {
				t.Fatalf("seed loan: %v", err)
			}

			_, err := f.service.OriginateLoan(ctx, "ann@example.com", tt.principal)
			if !errors.Is(err, domain.ErrLoanLimitExceeded) {
				t.Fatalf("expected ErrLoanLimitExceeded, got %v", err)
			}
			if errors.Is(err, domain.ErrTransient) {
				t.Fatalf("rejection must not be retryable: %v", err)
			}
			if got := f.balance(t, "ann@example.com"); got != money.FromUnits(500) {
				t.Fatalf("rejected loan changed balance to %s", got)
			}
			if n := f.count(t, "loans"); n != 1 {
				t.Fatalf("expected only the seed loan, got %d", n)
			}
		})
	}
}

func TestLoanTermTooLongIsRejected(t *testing.T) {
	policy := defaultPolicy
	policy.RepaymentLimit = money.Amount(math.MaxInt64)
	policy.PrincipalPerYear = 1
	f := newFixture(t, policy)
	f.seed(t, "a", "ann@example.com", money.Zero)

	_, err := f.service.OriginateLoan(context.Background(), "ann@example.com", money.FromUnits(1500))
	if !errors.Is(err, domain.ErrInvalidAmount) || errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected non-transient ErrInvalidAmount, got %v", err)
	}
	if n := f.count(t, "outbox_messages"); n != 0 {
		t.Fatalf("expected no outbox message, got %d", n)
	}
}

func TestLoanPrincipalValidation(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	f.seed(t, "a", "ann@example.com", money.Zero)

	for _, principal := range []money.Amount{0, money.FromUnits(499), money.FromUnits(750), money.MustParse("500.50"), -money.FromUnits(500)} {
		if _, err := f.service.OriginateLoan(context.Background(), "ann@example.com", principal); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("principal %s: expected ErrInvalidAmount, got %v", principal, err)
		}
	}
	if _, err := f.service.OriginateLoan(context.Background(), "zed@example.com", money.FromUnits(500)); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestListPaymentsPaged(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	f.seed(t, "a", "ann@example.com", money.FromUnits(100))
	f.seed(t, "b", "bob@example.com", money.FromUnits(100))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.service.Transfer(ctx, "ann@example.com", "bob@example.com", money.FromUnits(1)); err != nil {
			t.Fatalf("transfer: %v", err)
		}
	}
	if _, err := f.service.Transfer(ctx, "bob@example.com", "ann@example.com", money.FromUnits(2)); err != nil {
		t.Fatalf("transfer back: %v", err)
	}

	page, err := f.service.ListPayments(ctx, "bob@example.com", domain.PageRequest{Page: 1, Size: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalElements != 4 || page.TotalPages != 2 || len(page.Content) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Content[0].SenderEmail != "bob@example.com" || page.Content[0].Amount != money.FromUnits(2) {
		t.Fatalf("unexpected last payment %+v", page.Content[0])
	}

	if _, err := f.service.ListPayments(ctx, "zed@example.com", domain.PageRequest{}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestLoanPolicyHelpers(t *testing.T) {
	repayment, err := defaultPolicy.Repayment(money.MustParse("0.05"))
	if err != nil {
		t.Fatalf("repayment: %v", err)
	}
	if repayment != money.MustParse("0.06") {
		t.Fatalf("expected half-up rounding to 0.06, got %s", repayment)
	}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := defaultPolicy.DueDate(money.FromUnits(999), from); !got.Equal(from.AddDate(1, 0, 0)) {
		t.Fatalf("expected one year for 999 units, got %v", got)
	}
}
