package main

import (
	"context"
	"fmt"

	"pharmaledger/internal/app"
	"pharmaledger/internal/core/tenant"
	"pharmaledger/internal/domain/importer"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/internal/domain/quota"
)

// Options selects the tenant to seed.
type Options struct {
	Slug     string
	Name     string
	Plan     string
	IssueKey bool
}

// Summary reports what Seed wrote.
type Summary struct {
	TenantID  string
	Created   int
	Merged    int
	Movements int
	APIKey    string
}

var demoRows = []importer.Row{
	{Name: "Paracetamol 500mg Tablet", Quantity: "500", MRP: "2.50", CostPrice: "1.20", SellingPrice: "2.20", ExpiryDate: "2027-06-30"},
	{Name: "Amoxicillin 250mg Capsule", Quantity: "240", MRP: "6.00", CostPrice: "3.10", ExpiryDate: "2027-01-31"},
	{Name: "Insulin Glargine 100IU/ml", Quantity: "12", MRP: "48.00", ExpiryDate: "2026-12-15"},
	{Name: "Ondansetron 4mg Injection", Quantity: "60", MRP: "3.75", CostPrice: "1.90"},
	{Name: "Salbutamol Inhaler 100mcg", Quantity: "8", MRP: "9.40", ExpiryDate: "2026-11-01"},
	{Name: "Normal Saline 0.9% 500ml", Quantity: "150", MRP: "1.10", CostPrice: "0.65", ExpiryDate: "2028-03-31"},
}

// Seed finds or creates the tenant, subscribes it, and imports the demo catalog.
// Re-running merges into the existing items and adds their quantities again.
func Seed(ctx context.Context, a *app.App, opts Options) (*Summary, error) {
	t, err := findOrCreate(ctx, a.Tenants, opts)
	if err != nil {
		return nil, err
	}
	summary := &Summary{TenantID: t.ID}

	if opts.Plan != "" {
		if _, err := a.Quota.ChangePlan(ctx, t.ID, quota.PlanChange{PlanName: opts.Plan, BillingCycle: quota.BillingMonthly}); err != nil {
			return nil, fmt.Errorf("subscribe to %s: %w", opts.Plan, err)
		}
	}

	result, err := a.Importer.Import(ctx, t.ID, demoRows)
	if err != nil {
		return nil, fmt.Errorf("import demo catalog: %w", err)
	}
	summary.Created, summary.Merged = result.Created, result.Merged
	if result.Rejected > 0 {
		return nil, fmt.Errorf("demo catalog rejected %d row(s): %s", result.Rejected, result.Errors[0].Reason)
	}

	ref := "WARD-3"
	for _, created := range result.CreatedItems {
		if created.Quantity < 20 {
			continue
		}
		_, err := a.Ledger.Record(ctx, t.ID, ledger.RecordRequest{
			ItemID:        created.ItemID,
			Type:          ledger.MovementOut,
			Quantity:      created.Quantity / 10,
			ReferenceType: "DISPENSE",
			ReferenceID:   &ref,
			Notes:         "Seeded ward dispense",
		})
		if err != nil {
			return nil, fmt.Errorf("dispense %s: %w", created.Name, err)
		}
		summary.Movements++
	}

	if opts.IssueKey {
		key, err := tenant.GenerateAPIKey()
		if err != nil {
			return nil, err
		}
		hash, err := tenant.HashAPIKey(key)
		if err != nil {
			return nil, err
		}
		if err := a.Tenants.SetAPIKeyHash(ctx, t.ID, hash); err != nil {
			return nil, err
		}
		summary.APIKey = key
	}
	return summary, nil
}

func findOrCreate(ctx context.Context, dir tenant.Directory, opts Options) (*tenant.Tenant, error) {
	in := tenant.CreateInput{Slug: opts.Slug, DisplayName: opts.Name}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	all, err := dir.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.Slug == in.Slug {
			return t, nil
		}
	}
	t := &tenant.Tenant{Slug: in.Slug, DisplayName: in.DisplayName, Status: tenant.StatusActive}
	if err := dir.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}
