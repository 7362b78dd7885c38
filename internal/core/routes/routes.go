package routes

import (
	"time"

	"equiploan/internal/core/container"
	"equiploan/internal/middleware"
	"equiploan/pkg/security"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

const requestTimeout = 30 * time.Second

func NewRouter(c *container.Container) *gin.Engine {
	if c.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RequestIDMiddleware(c.Logger),
		middleware.RecoveryMiddleware(c.Logger),
		cors.New(corsConfig(c.Config.CORSOrigins)),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.TimeoutMiddleware(requestTimeout),
	)

	RegisterPublicRoutes(router, c)
	RegisterProtectedRoutes(router, c)
	RegisterUtilityRoutes(router, c)

	return router
}

func RegisterPublicRoutes(router *gin.Engine, c *container.Container) {
	c.LoginHandler.RegisterRoutes(router)
}

func RegisterProtectedRoutes(router *gin.Engine, c *container.Container) {
	protectedRoutes := router.Group("")
	protectedRoutes.Use(security.JWTMiddleware(c.Tokens))

	c.EquipmentHandler.RegisterRoutes(protectedRoutes)
	c.LendingHandler.RegisterRoutes(protectedRoutes)
}

func RegisterUtilityRoutes(router *gin.Engine, c *container.Container) {
	router.GET("/health", c.HealthChecker.Handler())
}

func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins:     origins,
		AllowAllOrigins:  len(origins) == 0,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, "X-RateLimit-Remaining"},
		AllowCredentials: len(origins) > 0,
		MaxAge:           12 * time.Hour,
	}
}
