package quota

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/tx"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain/audit"
	"pharmaledger/pkg/logger"
)

var tracer = otel.Tracer("pharmaledger/quota")

func errNoCounter(class ResourceClass) error {
	return fmt.Errorf("no counter registered for resource class %q", class)
}

// Config configures the Gate.
type Config struct {
	Plans Plans
	Audit audit.Recorder
	Now   func() time.Time
}

// Gate decides whether a tenant may create one more counted resource.
type Gate struct {
	repo    Repository
	counter Counter
	txm     tx.Manager
	plans   Plans
	audit   audit.Recorder
	now     func() time.Time
}

// NewGate creates a quota gate. The plan table is copied and never mutated.
func NewGate(repo Repository, counter Counter, txm tx.Manager, cfg Config) *Gate {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Plans.byName == nil {
		cfg.Plans = DefaultPlans()
	}
	return &Gate{
		repo:    repo,
		counter: counter,
		txm:     txm,
		plans:   cfg.Plans,
		audit:   cfg.Audit,
		now:     cfg.Now,
	}
}

// Plans returns the plan table.
func (g *Gate) Plans() []Plan {
	return g.plans.All()
}

// CheckAndReserve allows creation of one more resource of class or returns
// NoActiveSubscription / QuotaExceeded. It must be called inside the transaction
// that performs the creation: the subscription row stays locked until that
// transaction ends, which serializes concurrent creations for the tenant.
func (g *Gate) CheckAndReserve(ctx context.Context, tenantID string, class ResourceClass) error {
	ctx, span := tracer.Start(ctx, "quota.check_and_reserve", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("quota.class", string(class)),
	))
	defer span.End()

	return g.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sub, err := g.activeSubscription(ctx, tenantID, true)
		if err != nil {
			return err
		}
		decision, err := g.decide(ctx, sub, class)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			maxVal, _ := decision.Limit.Max()
			logger.Info(ctx, "quota exceeded",
				"tenant_id", tenantID, "resource", class, "limit", maxVal, "current", decision.Current)
			return apperror.NewQuotaExceeded(string(class), class.Label(), maxVal, decision.Current)
		}
		return nil
	})
}

// Check evaluates the quota without raising QuotaExceeded, for callers that
// want to show an upgrade prompt before attempting a creation.
func (g *Gate) Check(ctx context.Context, tenantID string, class ResourceClass) (*Decision, error) {
	sub, err := g.activeSubscription(ctx, tenantID, false)
	if err != nil {
		return nil, err
	}
	return g.decide(ctx, sub, class)
}

func (g *Gate) decide(ctx context.Context, sub *Subscription, class ResourceClass) (*Decision, error) {
	limit := sub.Limit(class)
	decision := &Decision{Class: class, Limit: limit, Allowed: true}
	if limit.IsUnlimited() {
		return decision, nil
	}

	current, err := g.counter.Count(ctx, sub.TenantID, class)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", class, err)
	}
	decision.Current = current
	decision.Allowed = limit.Allows(current)
	if !decision.Allowed {
		maxVal, _ := limit.Max()
		decision.Message = fmt.Sprintf("%s limit reached (%d). Upgrade required.", class.Label(), maxVal)
	}
	return decision, nil
}

func (g *Gate) activeSubscription(ctx context.Context, tenantID string, lock bool) (*Subscription, error) {
	var (
		sub *Subscription
		err error
	)
	if lock {
		sub, err = g.repo.GetActiveForUpdate(ctx, tenantID)
	} else {
		sub, err = g.repo.GetActive(ctx, tenantID)
	}
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNoActiveSubscription(tenantID)
		}
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if !sub.InForce(g.now()) {
		return nil, apperror.NewNoActiveSubscription(tenantID).
			WithDetail("subscription_end", types.Date(sub.EndDate).Format(time.DateOnly))
	}
	return sub, nil
}

// Usage returns the tenant's usage snapshot for every class.
func (g *Gate) Usage(ctx context.Context, tenantID string) (*Usage, error) {
	sub, err := g.activeSubscription(ctx, tenantID, false)
	if err != nil {
		return nil, err
	}

	usage := &Usage{
		TenantID:      tenantID,
		PlanName:      sub.PlanName,
		BillingCycle:  sub.BillingCycle,
		StartDate:     sub.StartDate,
		EndDate:       sub.EndDate,
		DaysRemaining: max(types.DaysBetween(g.now(), sub.EndDate), 0),
		Features:      sub.Features,
	}
	for _, class := range Classes() {
		current, err := g.counter.Count(ctx, tenantID, class)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", class, err)
		}
		limit := sub.Limit(class)
		usage.Classes = append(usage.Classes, ClassUsage{
			Class:      class,
			Current:    current,
			Limit:      limit,
			Percentage: limit.Percentage(current),
			Unlimited:  limit.IsUnlimited(),
		})
	}
	return usage, nil
}

// PlanChange requests a switch to a plan from the table.
type PlanChange struct {
	PlanName     string
	BillingCycle BillingCycle
}

// ChangePlan installs a plan from the table. See ChangePlanTo.
func (g *Gate) ChangePlan(ctx context.Context, tenantID string, req PlanChange) (*Subscription, error) {
	plan, ok := g.plans.Get(req.PlanName)
	if !ok {
		return nil, apperror.NewFieldValidation("plan", fmt.Sprintf("unknown plan %q", req.PlanName))
	}
	return g.ChangePlanTo(ctx, tenantID, plan, req.BillingCycle)
}

// ChangePlanTo deactivates the current record and installs plan in one transaction.
// Current usage is not checked against the new limits; over-quota tenants keep
// their resources and are only blocked from creating more.
func (g *Gate) ChangePlanTo(ctx context.Context, tenantID string, plan Plan, cycle BillingCycle) (*Subscription, error) {
	if cycle == "" {
		cycle = BillingMonthly
	}
	now := g.now()
	start, end := cycle.Window(now)
	monthly, amount := plan.Fee(cycle)

	sub := &Subscription{
		ID:           id.New(),
		TenantID:     tenantID,
		PlanName:     plan.Name,
		Limits:       plan.Limits,
		Features:     plan.Features,
		BillingCycle: cycle,
		MonthlyFee:   monthly,
		Amount:       amount,
		StartDate:    start,
		EndDate:      end,
		IsActive:     true,
		CreatedAt:    now.UTC(),
	}

	var previous string
	err := g.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := g.repo.GetActiveForUpdate(ctx, tenantID)
		switch {
		case err == nil:
			previous = current.PlanName
			if err := g.repo.Deactivate(ctx, tenantID, current.ID); err != nil {
				return fmt.Errorf("deactivate subscription: %w", err)
			}
		case apperror.IsNotFound(err):
		default:
			return fmt.Errorf("load subscription: %w", err)
		}

		if err := g.repo.Create(ctx, sub); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}

		return audit.Write(ctx, g.audit, audit.Entry{
			TenantID:   tenantID,
			EntityType: "subscription",
			EntityID:   sub.ID.String(),
			Action:     audit.ActionPlanChange,
			Changes: map[string]any{
				"from":          previous,
				"to":            plan.Name,
				"billing_cycle": cycle,
				"amount":        amount.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "subscription plan changed",
		"tenant_id", tenantID, "from", previous, "to", plan.Name, "billing_cycle", cycle)
	return sub, nil
}

// History returns the tenant's subscription records, newest first.
func (g *Gate) History(ctx context.Context, tenantID string, limit int) ([]*Subscription, error) {
	if limit <= 0 {
		limit = 50
	}
	subs, err := g.repo.History(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("subscription history: %w", err)
	}
	return subs, nil
}
