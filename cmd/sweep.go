package cmd

import (
	"fmt"
	"time"

	auditLogRepo "equiploan/internal/auditlog"
	"equiploan/internal/database"
	"equiploan/internal/lending"
	"equiploan/internal/repository"
	"equiploan/pkg/auditlog"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// SweepCmd is meant to be run by an external scheduler such as cron.
var SweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reject external requests left pending for more than 3 days.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		db, err := database.NewPostgresConnection(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := repository.NewRepository(db)
		service := lending.NewLendingService(
			lending.NewRepository(repo),
			auditlog.NewAuditLog(auditLogRepo.NewRepository(repo), log),
			log,
		)
		defer service.Drain()

		encoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		now := time.Now()

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			candidates, err := service.ListExpiredPending(cmd.Context(), now)
			if err != nil {
				return err
			}
			return encoder.Encode(candidates)
		}

		operatorID, _ := cmd.Flags().GetInt("operator-id")
		if operatorID == 0 {
			operatorID = cfg.Sweep.OperatorID
		}

		result, err := service.SweepExpired(cmd.Context(), now, operatorID)
		if result != nil {
			if encodeErr := encoder.Encode(result); encodeErr != nil {
				log.Warn("Failed to print sweep result", zap.Error(encodeErr))
			}
		}
		if err != nil {
			return fmt.Errorf("sweep expired requests: %w", err)
		}

		return nil
	},
}
