package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"banking/internal/domain"
)

// PasswordHasher turns passwords into opaque hashes and checks them later.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns domain.ErrBadCredentials when password does not match.
	Verify(hash, password string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher uses bcrypt.DefaultCost when cost is zero.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (h *bcryptHasher) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return domain.ErrBadCredentials
	}
	return fmt.Errorf("compare password hash: %w", err)
}
