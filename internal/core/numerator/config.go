// Package numerator allocates human-readable reference numbers per tenant,
// such as the batch number stamped on every movement of one bulk import.
package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict allocates every number in the database. No gaps.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges of numbers and hands them out from memory.
	// A restart loses the unused part of a range.
	StrategyCached
)

// ResetPeriod decides when a sequence starts over at 1.
type ResetPeriod string

const (
	ResetNever ResetPeriod = "never"
	ResetYear  ResetPeriod = "year"
	ResetMonth ResetPeriod = "month"
)

const (
	defaultPadWidth  = 5
	defaultRangeSize = 50
)

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g. "IMP")
	Prefix string

	// IncludeYear adds the period year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	Reset ResetPeriod

	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached (default 50).
	RangeSize int64
}

// DefaultConfig returns a strict, yearly-reset configuration.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    defaultPadWidth,
		Reset:       ResetYear,
	}
}

// ImportBatch numbers bulk import runs, e.g. IMP-2026-00042.
var ImportBatch = DefaultConfig("IMP")

// Key is the sequence name for period.
func (c Config) Key(period time.Time) string {
	switch c.Reset {
	case ResetMonth:
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006_01"))
	case ResetYear:
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006"))
	default:
		return c.Prefix
	}
}

// Format renders num for period.
func (c Config) Format(period time.Time, num int64) string {
	width := c.PadWidth
	if width <= 0 {
		width = defaultPadWidth
	}
	if c.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), width, num)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, width, num)
}

// BatchSize returns the cached range size.
func (c Config) BatchSize() int64 {
	if c.RangeSize <= 0 {
		return defaultRangeSize
	}
	return c.RangeSize
}

// ParseNumber extracts the numeric part of a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndexByte(formatted, '-')
	if i < 0 {
		return -1
	}
	n, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
