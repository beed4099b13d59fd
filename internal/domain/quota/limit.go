// Package quota implements the subscription-based resource quota gate.
package quota

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// UnlimitedSentinel is the storage and wire encoding of an unlimited quota.
const UnlimitedSentinel int64 = -1

// Limit is either Unlimited or Limited(n). The sentinel never leaves the encoding edge.
type Limit struct {
	max       int64
	unlimited bool
}

// Unlimited returns a limit that never blocks creation.
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// Limited returns a cap of n resources. n must be non-negative.
func Limited(n int64) Limit {
	if n < 0 {
		panic(fmt.Sprintf("quota: negative limit %d", n))
	}
	return Limit{max: n}
}

// FromSentinel decodes a stored value: -1 is unlimited, anything else below zero is invalid.
func FromSentinel(v int64) (Limit, error) {
	switch {
	case v == UnlimitedSentinel:
		return Unlimited(), nil
	case v < 0:
		return Limit{}, fmt.Errorf("quota: invalid limit %d", v)
	default:
		return Limited(v), nil
	}
}

// IsUnlimited reports whether the limit has no cap.
func (l Limit) IsUnlimited() bool { return l.unlimited }

// Max returns the cap and true, or 0 and false when unlimited.
func (l Limit) Max() (int64, bool) {
	if l.unlimited {
		return 0, false
	}
	return l.max, true
}

// Allows reports whether one more resource may be created when current already exist.
func (l Limit) Allows(current int64) bool {
	return l.unlimited || current < l.max
}

// Sentinel encodes the limit for storage.
func (l Limit) Sentinel() int64 {
	if l.unlimited {
		return UnlimitedSentinel
	}
	return l.max
}

// Percentage returns current as a share of the cap, 0 when unlimited or capped at zero.
func (l Limit) Percentage(current int64) float64 {
	if l.unlimited || l.max <= 0 {
		return 0
	}
	pct := float64(current) / float64(l.max) * 100
	return float64(int64(pct*10+0.5)) / 10
}

func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(l.max, 10)
}

func (l Limit) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Sentinel())
}

func (l *Limit) UnmarshalJSON(data []byte) error {
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("quota: limit must be an integer: %w", err)
	}
	parsed, err := FromSentinel(v)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
