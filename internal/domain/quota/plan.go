package quota

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/types"
)

// BillingCycle selects the subscription window and pricing.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingAnnual  BillingCycle = "annual"
)

// AnnualDiscount is taken off the monthly fee for annual billing.
var AnnualDiscount = decimal.RequireFromString("0.20")

// ParseBillingCycle validates a cycle name; empty means monthly.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch BillingCycle(s) {
	case "", BillingMonthly:
		return BillingMonthly, nil
	case BillingAnnual:
		return BillingAnnual, nil
	default:
		return "", apperror.NewFieldValidation("billing_cycle", fmt.Sprintf("unknown billing cycle %q", s))
	}
}

// Window returns the validity window starting at start.
func (c BillingCycle) Window(start time.Time) (time.Time, time.Time) {
	start = types.Date(start)
	if c == BillingAnnual {
		return start, start.AddDate(0, 0, 365)
	}
	return start, start.AddDate(0, 0, 30)
}

// Plan is one entry of the plan table.
type Plan struct {
	Name       string                  `json:"name"`
	MonthlyFee types.Money             `json:"monthly_fee"`
	Limits     map[ResourceClass]Limit `json:"limits"`
	Features   []string                `json:"features"`
}

// Limit returns the plan's limit for a class. Classes the plan does not mention are unlimited.
func (p Plan) Limit(class ResourceClass) Limit {
	if l, ok := p.Limits[class]; ok {
		return l
	}
	return Unlimited()
}

// Fee returns the effective monthly fee and the amount billed for one window.
func (p Plan) Fee(cycle BillingCycle) (monthly, amount types.Money) {
	if cycle == BillingAnnual {
		monthly = types.Round2(p.MonthlyFee.Mul(decimal.NewFromInt(1).Sub(AnnualDiscount)))
		return monthly, monthly.Mul(decimal.NewFromInt(12))
	}
	return p.MonthlyFee, p.MonthlyFee
}

// Plans is an immutable plan table injected into the Gate.
type Plans struct {
	order  []string
	byName map[string]Plan
}

// NewPlans builds a plan table. Names must be unique and non-empty.
func NewPlans(plans ...Plan) (Plans, error) {
	t := Plans{byName: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		if p.Name == "" {
			return Plans{}, fmt.Errorf("plan name is required")
		}
		if _, dup := t.byName[p.Name]; dup {
			return Plans{}, fmt.Errorf("duplicate plan %q", p.Name)
		}
		if p.MonthlyFee.IsNegative() {
			return Plans{}, fmt.Errorf("plan %q: negative fee", p.Name)
		}
		t.order = append(t.order, p.Name)
		t.byName[p.Name] = clonePlan(p)
	}
	return t, nil
}

// Get returns a copy of the named plan.
func (t Plans) Get(name string) (Plan, bool) {
	p, ok := t.byName[name]
	if !ok {
		return Plan{}, false
	}
	return clonePlan(p), true
}

// All returns copies of all plans in declaration order.
func (t Plans) All() []Plan {
	out := make([]Plan, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, clonePlan(t.byName[name]))
	}
	return out
}

func clonePlan(p Plan) Plan {
	limits := make(map[ResourceClass]Limit, len(p.Limits))
	for k, v := range p.Limits {
		limits[k] = v
	}
	p.Limits = limits
	p.Features = slices.Clone(p.Features)
	return p
}

var baseFeatures = []string{"appointments", "billing", "records", "email_support", "mobile_app"}

// DefaultPlans returns the standard basic/standard/enterprise table.
func DefaultPlans() Plans {
	standardFeatures := append(slices.Clone(baseFeatures),
		"analytics", "whatsapp_notifications", "data_export", "priority_support", "patient_portal", "inventory")
	enterpriseFeatures := append(slices.Clone(standardFeatures),
		"cloud_backup", "24_7_support", "role_based_access", "advanced_analytics", "api_access",
		"multi_location", "custom_integrations", "account_manager", "sla")

	plans, err := NewPlans(
		Plan{
			Name:       "basic",
			MonthlyFee: types.MustMoney("2999"),
			Limits: map[ResourceClass]Limit{
				ClassPatient: Limited(25), ClassDoctor: Limited(2), ClassStaff: Limited(5), ClassCatalogItem: Limited(500),
			},
			Features: slices.Clone(baseFeatures),
		},
		Plan{
			Name:       "standard",
			MonthlyFee: types.MustMoney("7499"),
			Limits: map[ResourceClass]Limit{
				ClassPatient: Limited(100), ClassDoctor: Limited(10), ClassStaff: Limited(20), ClassCatalogItem: Limited(5000),
			},
			Features: standardFeatures,
		},
		Plan{
			Name:       "enterprise",
			MonthlyFee: types.MustMoney("17999"),
			Limits: map[ResourceClass]Limit{
				ClassPatient: Unlimited(), ClassDoctor: Unlimited(), ClassStaff: Unlimited(), ClassCatalogItem: Unlimited(),
			},
			Features: enterpriseFeatures,
		},
	)
	if err != nil {
		panic(err)
	}
	return plans
}
