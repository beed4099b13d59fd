// Package types provides money and calendar-date helpers shared by the domain packages.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MoneyPtr returns a pointer to a copy of m.
func MoneyPtr(m Money) *Money {
	return &m
}

// IsNegative reports whether an optional amount is present and below zero.
func IsNegative(m *Money) bool {
	return m != nil && m.IsNegative()
}

// OrZero dereferences an optional amount.
func OrZero(m *Money) Money {
	if m == nil {
		return decimal.Zero
	}
	return *m
}

// Round2 rounds to two decimal places, the precision used for prices and totals.
func Round2(m Money) Money {
	return m.Round(2)
}
