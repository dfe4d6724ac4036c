// Package money implements fixed-point monetary amounts with two fraction digits.
//
// An Amount is stored as a count of cents in an int64, which keeps arithmetic
// exact and lets every SQL backend persist it as a plain BIGINT. Decimal math
// (multipliers, parsing) goes through shopspring/decimal and is rounded back to
// cents half away from zero, i.e. half-up for the positive amounts the ledger
// deals with.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits every Amount carries.
const Scale = 2

const centsPerUnit = 100

var ErrInvalid = errors.New("invalid amount")

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// Amount is a monetary value expressed in cents.
type Amount int64

// Zero is the empty balance.
const Zero Amount = 0

// Parse reads a decimal string such as "12", "12.5" or "12.50".
// More than two significant fraction digits is an error.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalid)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal converts d to cents. It fails if d has more than two
// significant fraction digits or does not fit in an int64 cent count.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Truncate(Scale)) {
		return 0, fmt.Errorf("%w: %s has more than %d fraction digits", ErrInvalid, d.String(), Scale)
	}
	cents := d.Shift(Scale)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalid, d.String())
	}
	return Amount(cents.IntPart()), nil
}

// FromUnits returns an Amount of whole currency units.
func FromUnits(units int64) Amount {
	return Amount(units * centsPerUnit)
}

// Units returns the whole-unit part of a, truncated toward zero.
func (a Amount) Units() int64 {
	return int64(a) / centsPerUnit
}

// IsWhole reports whether a has no fractional cents.
func (a Amount) IsWhole() bool {
	return int64(a)%centsPerUnit == 0
}

func (a Amount) IsPositive() bool { return a > 0 }

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

// MulRound multiplies a by factor and rounds the product to cents,
// half away from zero.
func (a Amount) MulRound(factor decimal.Decimal) (Amount, error) {
	return FromDecimal(a.Decimal().Mul(factor).Round(Scale))
}

// String formats a with exactly two fraction digits.
func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}

// MarshalJSON encodes a as a bare JSON number with two fraction digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores a as its cent count.
func (a Amount) Value() (driver.Value, error) {
	return int64(a), nil
}

// Scan reads a cent count. Aggregates such as SUM may come back from
// PostgreSQL as NUMERIC text, so byte and string forms are accepted too.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = 0
	case int64:
		*a = Amount(v)
	case []byte:
		return a.scanText(string(v))
	case string:
		return a.scanText(v)
	default:
		return fmt.Errorf("money: cannot scan %T into Amount", src)
	}
	return nil
}

func (a *Amount) scanText(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("money: scan %q: %w", s, err)
	}
	if !d.IsInteger() {
		return fmt.Errorf("money: scan %q: cent count is not an integer", s)
	}
	*a = Amount(d.IntPart())
	return nil
}
