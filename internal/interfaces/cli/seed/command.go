package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orris-inc/docpilot/internal/application/billing/usecases"
	"github.com/orris-inc/docpilot/internal/infrastructure/config"
	"github.com/orris-inc/docpilot/internal/infrastructure/database"
	httpRouter "github.com/orris-inc/docpilot/internal/interfaces/http"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

var (
	env    string
	file   string
	dryRun bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Sync the plan catalog into the database",
		Long: `Create missing plans and update existing ones from a YAML catalog.
Entitlements listed in the catalog are upserted; others are left alone.`,
		RunE: run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&file, "file", "f", "configs/plans.yaml", "Plan catalog file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse the catalog and print it without writing")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	catalog, err := loadCatalog(file)
	if err != nil {
		return err
	}

	if dryRun {
		printCatalog(cmd, catalog)
		return nil
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Logger, false); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	ctx := context.Background()
	container, err := httpRouter.NewContainer(ctx, database.Get(), cfg, logger.WithComponent("cli.seed"))
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	defer container.Shutdown()

	result, err := container.SyncPlanCatalog().Execute(ctx, catalog)
	if err != nil {
		return fmt.Errorf("failed to sync plan catalog: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "plans created: %d, updated: %d, entitlements written: %d\n",
		result.Created, result.Updated, result.Entitlements)
	return nil
}

func loadCatalog(path string) (*usecases.PlanCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan catalog: %w", err)
	}
	defer f.Close()

	return usecases.LoadPlanCatalog(f)
}

func printCatalog(cmd *cobra.Command, catalog *usecases.PlanCatalog) {
	out := cmd.OutOrStdout()
	for _, p := range catalog.Plans {
		fmt.Fprintf(out, "%-12s %-10s %8d %s  points=%d  entitlements=%d\n",
			p.Code, p.BillingCycle, p.PriceCents, p.Currency, p.MonthlyPoints, len(p.Entitlements))
	}
}
