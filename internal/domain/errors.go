package domain

import (
	"errors"
	"fmt"
)

var (
	ErrIdentityConflict  = errors.New("identity already registered")
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrBadCredentials    = errors.New("bad credentials")
	ErrTokenInvalid      = errors.New("token is invalid")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLoanLimitExceeded = errors.New("loan limit exceeded")
	ErrAccountNotFound   = errors.New("account not found")
	ErrReceiverNotFound  = errors.New("receiver not found")
	ErrSelfTransfer      = errors.New("sender and receiver are the same account")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// ErrTransient marks failures of the storage layer that a caller may retry.
var ErrTransient = errors.New("transient storage failure")

// TransientError wraps a storage failure that did not change any state.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Transient wraps err as a TransientError unless it is nil or already a
// domain sentinel.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsBusinessError(err) || errors.Is(err, ErrTransient) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

var businessErrors = []error{
	ErrIdentityConflict,
	ErrIdentityNotFound,
	ErrBadCredentials,
	ErrTokenInvalid,
	ErrInsufficientFunds,
	ErrLoanLimitExceeded,
	ErrAccountNotFound,
	ErrReceiverNotFound,
	ErrSelfTransfer,
	ErrInvalidAmount,
}

// BusinessCause returns the domain rejection err wraps, if any.
func BusinessCause(err error) (error, bool) {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return target, true
		}
	}
	return nil, false
}

// IsBusinessError reports whether err is one of the domain rejections.
func IsBusinessError(err error) bool {
	_, ok := BusinessCause(err)
	return ok
}
