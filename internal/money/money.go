// Package money provides an exact decimal amount type for ledger math.
//
// All arithmetic is performed on exact decimals (never binary floating point)
// so that running balances stay drift-free across many small transactions.
// Rounding is round-half-up (ties away from zero) to 2 fractional digits and
// is applied only where a derived value (a division result) crosses a
// boundary, never on intermediate sums.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an amount cannot be parsed as a decimal.
var ErrInvalidAmount = errors.New("invalid amount")

// Scale is the number of fractional digits carried at boundaries.
const Scale = 2

// Money is an exact decimal monetary amount.
// The zero value is a valid zero amount.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// Parse constructs a Money from a decimal string like "12.50" or "-3".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// MustParse is Parse that panics on error. For constants in tests and fixtures.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromCents constructs a Money from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Neg returns -m.
func (m Money) Neg() Money { return Money{d: m.d.Neg()} }

// MulInt returns m * n exactly.
func (m Money) MulInt(n int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(n))}
}

// Cmp compares m and o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// Equal reports whether m and o represent the same amount.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool { return m.d.IsZero() }

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool { return m.d.IsPositive() }

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Abs returns the absolute value of m.
func (m Money) Abs() Money { return Money{d: m.d.Abs()} }

// Round normalizes m to 2 fractional digits, round-half-up
// (ties away from zero).
func (m Money) Round() Money { return Money{d: m.d.Round(Scale)} }

// DivRound divides m by n and rounds the quotient to 2 fractional digits,
// round-half-up. This is the only division in the ledger (the fair share);
// intermediate sums are never rounded.
func (m Money) DivRound(n int64) (Money, error) {
	if n == 0 {
		return Money{}, fmt.Errorf("%w: division by zero", ErrInvalidAmount)
	}
	return Money{d: m.d.DivRound(decimal.NewFromInt(n), Scale)}, nil
}

// String renders m with exactly 2 fractional digits, e.g. "12.50".
func (m Money) String() string { return m.d.StringFixed(Scale) }

// MarshalJSON encodes m as a JSON number with 2 fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON decodes a JSON number or string directly as a decimal,
// without a float64 round trip.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
	}
	m.d = d
	return nil
}

// Value implements driver.Valuer, storing the canonical decimal string.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for TEXT columns written by Value.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		m.d = decimal.Decimal{}
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidAmount, v)
		}
		m.d = d
		return nil
	case []byte:
		return m.Scan(string(v))
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, src)
	}
}

// Sum returns the exact sum of amounts.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
