package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"equiploan/internal/core/container"
	"equiploan/internal/core/routes"
	"equiploan/internal/database"
	"equiploan/internal/database/migration"
	"equiploan/internal/rate_limiter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sourceURL, err := migration.SourceURL(cfg.MigrationsDir)
		if err != nil {
			return err
		}
		if err := migration.Migrate(cfg.DatabaseURL, sourceURL, false, log); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}

		db, err := database.NewPostgresConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Info("Connected to the database successfully")

		c := container.NewAppContainer(db, cfg, log)
		defer c.Close()

		if limiter, ok := c.RateLimiter.(*rate_limiter.RateLimiter); ok {
			go limiter.Run(ctx)
		}

		server := &http.Server{
			Addr:              cfg.Host,
			Handler:           routes.NewRouter(c),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			log.Info("Starting HTTP server", zap.String("addr", cfg.Host))
			serveErr <- server.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err = server.Shutdown(shutdownCtx)
		c.LendingService.Drain()
		return err
	},
}
