package domain

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"banking/internal/money"
)

type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Balance      money.Amount
	Roles        Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail is the canonical form identities are stored and compared in:
// NFC-composed, trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}
