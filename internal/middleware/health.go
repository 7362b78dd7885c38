package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthStatus struct {
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	LastChecked time.Time `json:"last_checked"`
	Uptime      string    `json:"uptime"`
	Version     string    `json:"version"`
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker caches the last probe for cacheDuration so that frequent
// load balancer checks do not hit the database every time.
type HealthChecker struct {
	mu            sync.Mutex
	db            Pinger
	version       string
	startTime     time.Time
	cacheDuration time.Duration
	last          HealthStatus
	lastCode      int
	now           func() time.Time
}

func NewHealthChecker(db Pinger, version string) *HealthChecker {
	return &HealthChecker{
		db:            db,
		version:       version,
		startTime:     time.Now(),
		cacheDuration: 5 * time.Second,
		now:           time.Now,
	}
}

func (h *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := h.check(c.Request.Context())
		c.JSON(code, status)
	}
}

func (h *HealthChecker) check(ctx context.Context) (HealthStatus, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if h.lastCode != 0 && now.Sub(h.last.LastChecked) < h.cacheDuration {
		return h.last, h.lastCode
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:      "ok",
		Database:    "ok",
		LastChecked: now,
		Uptime:      now.Sub(h.startTime).Truncate(time.Second).String(),
		Version:     h.version,
	}
	code := http.StatusOK
	if err := h.db.Ping(pingCtx); err != nil {
		status.Status = "degraded"
		status.Database = err.Error()
		code = http.StatusServiceUnavailable
	}

	h.last, h.lastCode = status, code
	return status, code
}
