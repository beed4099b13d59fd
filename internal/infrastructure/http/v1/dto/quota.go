package dto

import (
	"time"

	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain/quota"
)

// PlanChangeRequest switches the tenant to a plan from the plan table.
type PlanChangeRequest struct {
	Plan         string `json:"plan" binding:"required"`
	BillingCycle string `json:"billing_cycle"`
}

// SubscriptionResponse is one subscription record. Limits use -1 for unlimited.
type SubscriptionResponse struct {
	ID           string                 `json:"id"`
	PlanName     string                 `json:"plan_name"`
	Limits       map[string]quota.Limit `json:"limits"`
	Features     []string               `json:"features"`
	BillingCycle quota.BillingCycle     `json:"billing_cycle"`
	MonthlyFee   types.Money            `json:"monthly_fee"`
	Amount       types.Money            `json:"amount"`
	StartDate    Date                   `json:"start_date"`
	EndDate      Date                   `json:"end_date"`
	IsActive     bool                   `json:"is_active"`
	CreatedAt    time.Time              `json:"created_at"`
}

func FromSubscription(s *quota.Subscription) SubscriptionResponse {
	limits := make(map[string]quota.Limit, len(quota.Classes()))
	for _, class := range quota.Classes() {
		limits[string(class)] = s.Limit(class)
	}
	return SubscriptionResponse{
		ID:           s.ID.String(),
		PlanName:     s.PlanName,
		Limits:       limits,
		Features:     s.Features,
		BillingCycle: s.BillingCycle,
		MonthlyFee:   s.MonthlyFee,
		Amount:       s.Amount,
		StartDate:    Date{Time: types.Date(s.StartDate)},
		EndDate:      Date{Time: types.Date(s.EndDate)},
		IsActive:     s.IsActive,
		CreatedAt:    s.CreatedAt,
	}
}

func FromSubscriptions(subs []*quota.Subscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, FromSubscription(s))
	}
	return out
}
