package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"banking/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrIdentityConflict, http.StatusConflict},
		{domain.ErrIdentityNotFound, http.StatusNotFound},
		{fmt.Errorf("transfer: %w", domain.ErrReceiverNotFound), http.StatusNotFound},
		{domain.ErrBadCredentials, http.StatusUnauthorized},
		{domain.ErrTokenInvalid, http.StatusBadRequest},
		{domain.ErrInsufficientFunds, http.StatusBadRequest},
		{domain.ErrLoanLimitExceeded, http.StatusBadRequest},
		{domain.ErrSelfTransfer, http.StatusBadRequest},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.Transient("load account", errors.New("connection refused")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteServiceError(t *testing.T) {
	logger := zap.NewNop()

	rec := httptest.NewRecorder()
	WriteServiceError(rec, logger, fmt.Errorf("%w: loan amount must be a multiple of 500", domain.ErrInvalidAmount))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "invalid amount: loan amount must be a multiple of 500" {
		t.Fatalf("unexpected message %q", body.Error)
	}

	rec = httptest.NewRecorder()
	WriteServiceError(rec, logger, fmt.Errorf("transfer: %w", domain.ErrInsufficientFunds))
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != "insufficient funds" {
		t.Fatalf("expected bare sentinel message, got %q (%v)", body.Error, err)
	}

	rec = httptest.NewRecorder()
	WriteServiceError(rec, logger, domain.Transient("transfer", errors.New("database is locked")))
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 503 with Retry-After, got %d %q", rec.Code, rec.Header().Get("Retry-After"))
	}

	rec = httptest.NewRecorder()
	WriteServiceError(rec, logger, errors.New("secret internals"))
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != "internal server error" {
		t.Fatalf("internal errors must be hidden, got %q", body.Error)
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"a@b.c", "ann@example.com", "first.last+tag@sub.example.org"}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("ValidateEmail(%q): %v", email, err)
		}
	}
	invalid := []string{"", "ab", "ann", "ann@example", "@.", "ann@", "ann@@example"}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("ValidateEmail(%q): expected error", email)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345"); err == nil {
		t.Fatal("expected error for short password")
	}
	if err := ValidatePassword("123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'x'
	}
	if err := ValidatePassword(string(long)); err == nil {
		t.Fatal("expected error for password over 72 bytes")
	}
}

func TestParsePageRequest(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantSize  int
		wantError bool
	}{
		{query: "", wantPage: 0, wantSize: domain.DefaultPageSize},
		{query: "page=2&size=5", wantPage: 2, wantSize: 5},
		{query: "size=1000", wantPage: 0, wantSize: domain.MaxPageSize},
		{query: "page=-1", wantError: true},
		{query: "size=0", wantError: true},
		{query: "page=abc", wantError: true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/payment/payments?"+tt.query, nil)
		got, err := ParsePageRequest(req)
		if tt.wantError {
			if err == nil {
				t.Errorf("query %q: expected error", tt.query)
			}
			continue
		}
		if err != nil {
			t.Errorf("query %q: unexpected error %v", tt.query, err)
			continue
		}
		if got.Page != tt.wantPage || got.Size != tt.wantSize {
			t.Errorf("query %q: got %+v", tt.query, got)
		}
	}
}

func TestNewPageResponse(t *testing.T) {
	page := domain.NewPage([]int{1, 2}, domain.PageRequest{Page: 0, Size: 2}, 3)
	resp := NewPageResponse(page, func(i int) string { return fmt.Sprint(i * 10) })
	if len(resp.Content) != 2 || resp.Content[1] != "20" || resp.TotalPages != 2 || resp.TotalElements != 3 {
		t.Fatalf("unexpected page response %+v", resp)
	}
}
