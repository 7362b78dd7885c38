package cmd

import (
	"fmt"

	"equiploan/internal/database/migration"

	"github.com/spf13/cobra"
)

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run migrations manually.",
	Long:  `Applies every pending migration, or reverts the last N with --down.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.MigrationsDir
		}
		sourceURL, err := migration.SourceURL(dir)
		if err != nil {
			return err
		}

		down, _ := cmd.Flags().GetInt("down")
		if down > 0 {
			if err := migration.Rollback(cfg.DatabaseURL, sourceURL, down, log); err != nil {
				return fmt.Errorf("rollback database: %w", err)
			}
			return nil
		}

		if err := migration.Migrate(cfg.DatabaseURL, sourceURL, true, log); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}

		return nil
	},
}
