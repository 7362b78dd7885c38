package cmd

import (
	"context"
	"fmt"
	"os"

	"equiploan/internal/config"
	"equiploan/internal/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func Execute(ctx context.Context) {
	rootCmd := &cobra.Command{
		Use:          "equiploan",
		Short:        "Department equipment lending service",
		SilenceUsage: true,
	}

	MigrateCmd.Flags().String("dir", "", "Directory containing the migration files (defaults to MIGRATIONS_DIR)")
	MigrateCmd.Flags().Int("down", 0, "Revert the given number of migrations instead of applying them")
	SweepCmd.Flags().Int("operator-id", 0, "User recorded as the rejecting operator (defaults to SWEEP_OPERATOR_ID)")
	SweepCmd.Flags().Bool("dry-run", false, "Only list expired requests")

	rootCmd.AddCommand(ServeCmd, MigrateCmd, SweepCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads and validates configuration and builds the logger shared
// by every command.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, logger.ForEnv(cfg.Env), nil
}
