package quota

import (
	"slices"
	"time"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
)

// Subscription is a tenant's plan record. At most one per tenant is active.
type Subscription struct {
	ID           id.ID
	TenantID     string
	PlanName     string
	Limits       map[ResourceClass]Limit
	Features     []string
	BillingCycle BillingCycle
	MonthlyFee   types.Money
	Amount       types.Money
	StartDate    time.Time
	EndDate      time.Time
	IsActive     bool
	CreatedAt    time.Time
}

// Limit returns the subscription's limit for class; unmentioned classes are unlimited.
func (s *Subscription) Limit(class ResourceClass) Limit {
	if l, ok := s.Limits[class]; ok {
		return l
	}
	return Unlimited()
}

// InForce reports whether the record is active and today falls inside [StartDate, EndDate].
func (s *Subscription) InForce(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	today := types.Date(now)
	return !today.Before(types.Date(s.StartDate)) && !today.After(types.Date(s.EndDate))
}

// HasFeature reports whether the plan includes a named feature.
func (s *Subscription) HasFeature(name string) bool {
	return slices.Contains(s.Features, name)
}

// ClassUsage is the usage of one resource class.
type ClassUsage struct {
	Class      ResourceClass `json:"resource"`
	Current    int64         `json:"current"`
	Limit      Limit         `json:"limit"`
	Percentage float64       `json:"percentage"`
	Unlimited  bool          `json:"unlimited"`
}

// Usage is a tenant's usage snapshot.
type Usage struct {
	TenantID      string       `json:"tenant_id"`
	PlanName      string       `json:"plan_name"`
	BillingCycle  BillingCycle `json:"billing_cycle"`
	StartDate     time.Time    `json:"start_date"`
	EndDate       time.Time    `json:"end_date"`
	DaysRemaining int          `json:"days_remaining"`
	Features      []string     `json:"features"`
	Classes       []ClassUsage `json:"classes"`
}

// Decision is the outcome of a quota check.
type Decision struct {
	Class   ResourceClass `json:"resource"`
	Allowed bool          `json:"allowed"`
	Current int64         `json:"current"`
	Limit   Limit         `json:"limit"`
	Message string        `json:"message,omitempty"`
}
