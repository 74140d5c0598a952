// Package core provides money parsing and handling utilities.
//
// Money is a fixed-point amount with two fractional digits backed by
// shopspring/decimal. Every arithmetic operation stays exact; rounding only
// happens when parsing input and when computing percentages.
package core

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by Money.
const Scale = 2

// MaxDigits is the number of integer digits a stored amount or balance may
// carry; columns are DECIMAL(15,2).
const MaxDigits = 13

var (
	hundred  = decimal.NewFromInt(100)
	moneyCap = decimal.New(1, MaxDigits)
)

// Money is an exact decimal amount. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal, rounding it half-up to two digits.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// MoneyFromCents builds Money from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

// ParseMoney parses a decimal string into Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Negative values are accepted here; use
// ParseAmount for transaction amounts.
//
// Examples:
//   ParseMoney("12.34")  -> 12.34
//   ParseMoney("12,345") -> 12.35
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return NewMoney(d), nil
}

// ParseAmount parses a strictly positive transaction amount.
func ParseAmount(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}, err
	}
	if !m.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.d.Shift(Scale).Round(0).IntPart()
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }

// Cmp returns -1, 0 or +1 like decimal.Cmp.
func (m Money) Cmp(o Money) int    { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) IsZero() bool       { return m.d.IsZero() }
func (m Money) IsNegative() bool   { return m.d.IsNegative() }
func (m Money) IsPositive() bool   { return m.d.IsPositive() }

// String formats the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

// Validate reports whether m is usable as a transaction amount.
func (m Money) Validate() error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	if !m.InRange() {
		return fmt.Errorf("%w: %s exceeds %d integer digits", ErrInvalidAmount, m, MaxDigits)
	}
	return nil
}

// InRange reports whether |m| fits the stored DECIMAL(15,2) columns.
func (m Money) InRange() bool {
	return m.d.Abs().LessThan(moneyCap)
}

// MarshalJSON renders Money as a bare JSON number, e.g. 5000.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	*m = NewMoney(d)
	return nil
}

// Scan implements sql.Scanner for TEXT (sqlite) and NUMERIC (postgres) columns.
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	*m = NewMoney(d)
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Sum adds up a list of amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Percentage returns part/total*100 rounded half-up to two decimals.
// A zero total yields 0.
func Percentage(part, total Money) float64 {
	if total.IsZero() {
		return 0
	}
	return part.d.Mul(hundred).DivRound(total.d, Scale).InexactFloat64()
}
