package payments_repo

import (
	"context"
	"testing"
	"time"

	"banking/internal/domain"
	"banking/internal/infrastructure/database"
	"banking/internal/infrastructure/database/databasetest"
	"banking/internal/money"
	"banking/internal/repository/accounts_repo"
)

func TestCreateAndListByAccount(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()
	accounts := accounts_repo.NewAccountRepository(database.SQLite)
	now := time.Now()
	for _, a := range []struct{ id, email string }{{"a", "a@example.com"}, {"b", "b@example.com"}, {"c", "c@example.com"}} {
		if err := accounts.CreateAccountTx(ctx, db, &domain.Account{ID: a.id, Email: a.email, PasswordHash: "h", Roles: domain.DefaultRoles, CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("seed %s: %v", a.id, err)
		}
	}

	repo := NewPaymentRepository()
	pairs := [][2]string{{"a", "b"}, {"b", "a"}, {"b", "c"}, {"c", "a"}}
	var lastID int64
	for i, p := range pairs {
		payment := &domain.Payment{SenderID: p[0], ReceiverID: p[1], Amount: money.FromUnits(int64(i + 1)), CreatedAt: now}
		if err := repo.CreateTx(ctx, db, payment); err != nil {
			t.Fatalf("create payment %d: %v", i, err)
		}
		if payment.ID <= lastID {
			t.Fatalf("expected increasing ids, got %d after %d", payment.ID, lastID)
		}
		lastID = payment.ID
	}

	total, err := repo.CountByAccount(ctx, db, "a")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 payments touching a, got %d", total)
	}

	first, err := repo.ListByAccount(ctx, db, "a", domain.PageRequest{Page: 0, Size: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 2 || first[0].SenderEmail != "a@example.com" || first[1].ReceiverEmail != "a@example.com" {
		t.Fatalf("unexpected first page %+v", first)
	}
	second, err := repo.ListByAccount(ctx, db, "a", domain.PageRequest{Page: 1, Size: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(second) != 1 || second[0].SenderEmail != "c@example.com" || second[0].Amount != money.FromUnits(4) {
		t.Fatalf("unexpected second page %+v", second)
	}
}
