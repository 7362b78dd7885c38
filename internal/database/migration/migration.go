package migration

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"

	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// database driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file:// migration source
)

// SourceURL turns a directory into a file:// source URL. Values that already
// carry a scheme are returned unchanged.
func SourceURL(dir string) (string, error) {
	if strings.Contains(dir, "://") {
		return dir, nil
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return "file://" + absPath, nil
}

func Migrate(dbURL string, migrationsPath string, verbose bool, log *zap.Logger) error {
	log.Info("Running database migration", zap.String("source", migrationsPath))

	dbMigrate, err := open(dbURL, migrationsPath, verbose, log)
	if err != nil {
		return err
	}
	defer dbMigrate.Close()

	err = dbMigrate.Up()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Database migration: no change needed")
		} else {
			log.Error("Database migration failed", zap.Error(err))
			return err
		}
	}

	return nil
}

// Rollback reverts the given number of applied migrations.
func Rollback(dbURL string, migrationsPath string, steps int, log *zap.Logger) error {
	if steps <= 0 {
		return fmt.Errorf("rollback needs a positive number of steps, got %d", steps)
	}

	dbMigrate, err := open(dbURL, migrationsPath, true, log)
	if err != nil {
		return err
	}
	defer dbMigrate.Close()

	if err := dbMigrate.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error("Database rollback failed", zap.Error(err))
		return err
	}

	log.Info("Database rollback finished", zap.Int("steps", steps))
	return nil
}

func open(dbURL, migrationsPath string, verbose bool, log *zap.Logger) (*migrate.Migrate, error) {
	dbMigrate, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	dbMigrate.Log = NewLogger(log, verbose)
	return dbMigrate, nil
}

type Logger struct {
	logger  *zap.Logger
	verbose bool
}

func (l *Logger) Printf(format string, v ...any) {
	l.logger.Sugar().Infof("DB Migration: "+strings.TrimSuffix(format, "\n"), v...)
}

func (l *Logger) Verbose() bool {
	return l.verbose
}

func NewLogger(logger *zap.Logger, verbose bool) *Logger {
	return &Logger{
		logger:  logger,
		verbose: verbose,
	}
}
