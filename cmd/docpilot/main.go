package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/orris-inc/docpilot/internal/interfaces/cli/migrate"
	"github.com/orris-inc/docpilot/internal/interfaces/cli/seed"
	"github.com/orris-inc/docpilot/internal/interfaces/cli/server"
	"github.com/orris-inc/docpilot/internal/interfaces/cli/token"
)

// @title						DocPilot Billing API
// @version					1.0
// @description				Payments, points ledger and plan entitlements.
// @BasePath					/
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
func main() {
	rootCmd := &cobra.Command{
		Use:   "docpilot",
		Short: "DocPilot billing service",
		Long:  `DocPilot billing service with HTTP server, migration, catalog seeding and token tools.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		seed.NewCommand(),
		token.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
