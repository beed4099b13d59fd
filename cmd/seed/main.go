// Package main seeds a demo hospital tenant with a plan, a stocked catalog and some movements.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pharmaledger/internal/app"
	"pharmaledger/internal/config"
	"pharmaledger/pkg/logger"
)

func main() {
	var opts Options
	rootCmd := &cobra.Command{
		Use:           "seed",
		Short:         "Seed a demo tenant with inventory data",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.New())
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: true})
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

			summary, err := Seed(ctx, a, opts)
			if err != nil {
				return err
			}
			log.Infow("demo data seeded",
				"tenant_id", summary.TenantID,
				"created", summary.Created,
				"merged", summary.Merged,
				"movements", summary.Movements,
			)
			if summary.APIKey != "" {
				fmt.Println("API key (shown once):", summary.APIKey)
			}
			return nil
		},
	}
	rootCmd.Flags().StringVar(&opts.Slug, "slug", "demo-hospital", "Tenant slug")
	rootCmd.Flags().StringVar(&opts.Name, "name", "Demo General Hospital", "Tenant display name")
	rootCmd.Flags().StringVar(&opts.Plan, "plan", "standard", "Plan to subscribe the tenant to")
	rootCmd.Flags().BoolVar(&opts.IssueKey, "issue-key", false, "Issue a service API key for the tenant")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
