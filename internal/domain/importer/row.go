// Package importer reconciles bulk medicine rows into the catalog and the stock ledger.
package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmaledger/internal/core/types"
)

// Row is one raw input row. Every value is kept as text until parsed.
type Row struct {
	// Line is the source line reported in errors; zero means the 1-based row index.
	Line         int
	Name         string
	Quantity     string
	MRP          string
	CostPrice    string
	SellingPrice string
	ExpiryDate   string
}

// ExpiryLayouts are the accepted expiry formats, tried in order.
var ExpiryLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02-01-06",
	"02/01/06",
}

// ParseExpiry parses a calendar date in any of ExpiryLayouts.
func ParseExpiry(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range ExpiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return types.Date(t), true
		}
	}
	return time.Time{}, false
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// parseQuantity accepts a non-negative integer. Spreadsheet exports such as
// "20.0" are accepted when the fractional part is zero.
func parseQuantity(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("quantity is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		d, derr := decimal.NewFromString(s)
		if derr != nil || !d.IsInteger() {
			return 0, fmt.Errorf("invalid quantity %q: must be a non-negative integer", s)
		}
		if d.GreaterThan(maxQuantity) {
			return 0, fmt.Errorf("invalid quantity %q: exceeds %d", s, int64(math.MaxInt64))
		}
		n = d.IntPart()
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid quantity %q: must be a non-negative integer", s)
	}
	return n, nil
}

// parsePrice returns nil for an empty value. Invalid or negative values are
// dropped with a warning rather than rejecting the row.
func parsePrice(field, s string) (*types.Money, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Sprintf("%s %q is not a number and was ignored", field, s)
	}
	if d.IsNegative() {
		return nil, fmt.Sprintf("%s %q is negative and was ignored", field, s)
	}
	return types.MoneyPtr(d), ""
}

// DefaultCostRatio is the share of MRP assumed as wholesale cost when a row has no cost price.
// It is a business assumption, not a verified pricing rule.
var DefaultCostRatio = decimal.RequireFromString("0.60")

// CostPolicy derives a missing cost price from MRP.
type CostPolicy struct {
	Ratio decimal.Decimal
}

// DefaultCostPolicy returns the policy using DefaultCostRatio.
func DefaultCostPolicy() CostPolicy {
	return CostPolicy{Ratio: DefaultCostRatio}
}

// Derive returns ratio × mrp rounded to cents, or nil without a positive MRP.
func (p CostPolicy) Derive(mrp *types.Money) *types.Money {
	if mrp == nil || !mrp.IsPositive() {
		return nil
	}
	return types.MoneyPtr(types.Round2(mrp.Mul(p.Ratio)))
}
