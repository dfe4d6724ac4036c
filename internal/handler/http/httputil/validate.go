package httputil

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"unicode/utf8"

	"banking/internal/domain"
	"banking/internal/money"
)

var emailPattern = regexp.MustCompile(`^.+@.+\..+$`)

const (
	minEmailLength    = 3
	maxEmailLength    = 254
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

func ValidateEmail(email string) error {
	n := utf8.RuneCountInString(email)
	if n < minEmailLength || n > maxEmailLength {
		return fmt.Errorf("email must be between %d and %d characters", minEmailLength, maxEmailLength)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("email is malformed")
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

func ValidatePositiveAmount(amount money.Amount) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// ParsePageRequest reads the page and size query parameters.
func ParsePageRequest(r *http.Request) (domain.PageRequest, error) {
	var page domain.PageRequest
	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, fmt.Errorf("page must be a non-negative integer")
		}
		page.Page = n
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return page, fmt.Errorf("size must be a positive integer")
		}
		page.Size = n
	}
	return page.Normalize(), nil
}
