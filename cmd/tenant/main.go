// Package main provides the tenant management CLI.
// Usage: tenant create --slug st-marys --name "St Mary's Hospital" --plan basic
//        tenant list
//        tenant suspend <tenant-id>
//        tenant issue-key <tenant-id>
//        tenant token <tenant-id> --user pharmacist-1 --roles admin
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pharmaledger/internal/app"
	"pharmaledger/internal/config"
	"pharmaledger/internal/core/tenant"
	"pharmaledger/internal/domain/quota"
	"pharmaledger/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tenant",
		Short:         "Manage hospital tenants, plans and credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		createCmd(),
		listCmd(),
		statusCmd("suspend", "Suspend a tenant", tenant.StatusSuspended),
		statusCmd("activate", "Activate a suspended tenant", tenant.StatusActive),
		planCmd(),
		issueKeyCmd(),
		tokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp builds the service graph for a single command.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(config.New())
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.IsDev()})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func createCmd() *cobra.Command {
	var in tenant.CreateInput
	var plan, cycle string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a tenant and subscribe it to a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := in.Validate(); err != nil {
				return err
			}
			billing, err := quota.ParseBillingCycle(cycle)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				t := &tenant.Tenant{Slug: in.Slug, DisplayName: in.DisplayName, Status: tenant.StatusActive}
				if err := a.Tenants.Create(ctx, t); err != nil {
					return err
				}
				fmt.Printf("Tenant '%s' created\n", t.Slug)
				fmt.Printf("  Tenant ID: %s\n", t.ID)

				if plan == "" {
					return nil
				}
				sub, err := a.Quota.ChangePlan(ctx, t.ID, quota.PlanChange{PlanName: plan, BillingCycle: billing})
				if err != nil {
					return fmt.Errorf("subscribe %s to %s: %w", t.Slug, plan, err)
				}
				printSubscription(sub)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Slug, "slug", "", "Unique tenant slug (required)")
	cmd.Flags().StringVar(&in.DisplayName, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&plan, "plan", "basic", "Initial plan; empty to skip")
	cmd.Flags().StringVar(&cycle, "cycle", string(quota.BillingMonthly), "Billing cycle: monthly or annual")
	_ = cmd.MarkFlagRequired("slug")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				tenants, err := a.Tenants.ListAll(ctx)
				if err != nil {
					return err
				}
				if len(tenants) == 0 {
					fmt.Println("No tenants found.")
					return nil
				}
				fmt.Printf("%-36s %-20s %-30s %-10s %-8s\n", "TENANT_ID", "SLUG", "NAME", "STATUS", "API_KEY")
				fmt.Println(strings.Repeat("-", 108))
				for _, t := range tenants {
					key := "no"
					if t.APIKeyHash != nil {
						key = "yes"
					}
					fmt.Printf("%-36s %-20s %-30s %-10s %-8s\n",
						t.ID, truncate(t.Slug, 20), truncate(t.DisplayName, 30), t.Status, key)
				}
				return nil
			})
		},
	}
}

func statusCmd(use, short string, status tenant.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <tenant-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.Tenants.SetStatus(ctx, args[0], status); err != nil {
					return err
				}
				fmt.Printf("Tenant '%s' is now %s\n", args[0], status)
				return nil
			})
		},
	}
}

func planCmd() *cobra.Command {
	var cycle string
	cmd := &cobra.Command{
		Use:   "plan <tenant-id> <plan>",
		Short: "Change a tenant's subscription plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			billing, err := quota.ParseBillingCycle(cycle)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				if _, err := tenant.Resolve(ctx, a.Tenants, args[0]); err != nil {
					return err
				}
				sub, err := a.Quota.ChangePlan(ctx, args[0], quota.PlanChange{PlanName: args[1], BillingCycle: billing})
				if err != nil {
					return err
				}
				printSubscription(sub)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&cycle, "cycle", string(quota.BillingMonthly), "Billing cycle: monthly or annual")
	return cmd
}

func issueKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue-key <tenant-id>",
		Short: "Generate a service API key, replacing any previous one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := tenant.GenerateAPIKey()
			if err != nil {
				return err
			}
			hash, err := tenant.HashAPIKey(key)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.Tenants.SetAPIKeyHash(ctx, args[0], hash); err != nil {
					return err
				}
				fmt.Println("API key (shown once, send as X-API-Key):")
				fmt.Println(key)
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var user string
	var roles []string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <tenant-id>",
		Short: "Issue a bearer token for a tenant user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				t, err := tenant.Resolve(ctx, a.Tenants, args[0])
				if err != nil {
					return err
				}
				token, expires, err := a.Tokens.IssueToken(user, t.ID, roles, ttl)
				if err != nil {
					return err
				}
				fmt.Printf("Token for %s@%s (expires %s):\n", user, t.Slug, expires.Format(time.RFC3339))
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User identifier placed in the uid claim (required)")
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "Comma-separated roles, e.g. admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime; defaults to the service TTL")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printSubscription(sub *quota.Subscription) {
	fmt.Printf("  Plan: %s (%s)\n", sub.PlanName, sub.BillingCycle)
	fmt.Printf("  Amount: %s\n", sub.Amount.StringFixed(2))
	fmt.Printf("  Valid: %s to %s\n", sub.StartDate.Format(time.DateOnly), sub.EndDate.Format(time.DateOnly))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
