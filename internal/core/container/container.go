package container

import (
	"database/sql"

	auditLogRepo "equiploan/internal/auditlog"
	"equiploan/internal/config"
	"equiploan/internal/inventory/equipment"
	"equiploan/internal/lending"
	"equiploan/internal/middleware"
	"equiploan/internal/rate_limiter"
	"equiploan/internal/repository"
	"equiploan/pkg/auditlog"
	"equiploan/pkg/security"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const Version = "1.0.0"

type Container struct {
	Config           *config.Config
	Logger           *zap.Logger
	Repository       *repository.Repository
	AuditLog         *auditlog.Auditlog
	Tokens           *security.Tokens
	LoginHandler     *security.LoginHandler
	LendingService   *lending.LendingService
	LendingHandler   *lending.LendingHandler
	EquipmentHandler *equipment.EquipmentHandler
	HealthChecker    *middleware.HealthChecker
	RateLimiter      security.Limiter
	Redis            *redis.Client
}

func NewAppContainer(db *sql.DB, cfg *config.Config, logger *zap.Logger) *Container {
	repo := repository.NewRepository(db)
	auditLogRepository := auditLogRepo.NewRepository(repo)
	auditLog := auditlog.NewAuditLog(auditLogRepository, logger)

	tokens := security.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	limiter, redisClient := newLoginLimiter(cfg, logger)
	loginHandler := security.NewLoginHandler(security.NewUserRepository(repo), tokens, limiter, logger)

	lendingService := lending.NewLendingService(lending.NewRepository(repo), auditLog, logger)
	lendingHandler := lending.NewHandler(lendingService, logger)

	equipmentService := equipment.NewEquipmentService(equipment.NewRepository(repo), auditLogRepository)
	equipmentHandler := equipment.NewHandler(equipmentService, logger)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		Repository:       repo,
		AuditLog:         auditLog,
		Tokens:           tokens,
		LoginHandler:     loginHandler,
		LendingService:   lendingService,
		LendingHandler:   lendingHandler,
		EquipmentHandler: equipmentHandler,
		HealthChecker:    middleware.NewHealthChecker(repo, Version),
		RateLimiter:      limiter,
		Redis:            redisClient,
	}
}

// newLoginLimiter shares login attempts through redis when REDIS_ADDR is set
// and falls back to process memory otherwise.
func newLoginLimiter(cfg *config.Config, logger *zap.Logger) (security.Limiter, *redis.Client) {
	if cfg.Redis.Addr == "" {
		logger.Info("Using in-memory login rate limiter")
		return rate_limiter.NewRateLimiter(cfg.LoginLimit.Limit, cfg.LoginLimit.Window), nil
	}

	client := rate_limiter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	logger.Info("Using redis login rate limiter", zap.String("addr", cfg.Redis.Addr))
	return rate_limiter.NewRedisLimiter(client, "login", cfg.LoginLimit.Limit, cfg.LoginLimit.Window), client
}

func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
}
