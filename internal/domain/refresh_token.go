package domain

import "time"

// RefreshToken is the single active refresh credential of an account.
type RefreshToken struct {
	AccountID string
	Email     string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Email        string
}
