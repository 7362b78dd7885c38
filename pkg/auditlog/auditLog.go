package auditlog

import (
	"context"
	"time"

	"equiploan/pkg/models"

	"go.uber.org/zap"
)

const persistTimeout = 5 * time.Second

type Store interface {
	PersistLog(ctx context.Context, auditlog models.AuditLog, data interface{}) error
}

type Auditable interface {
	CreateLogView() models.AuditLog
}

type Auditlog struct {
	store  Store
	logger *zap.Logger
}

// Log writes one entry and never fails the caller. Callers usually run it
// in its own goroutine after the business transaction has committed.
func (a *Auditlog) Log(action string, userID int, data interface{}, item Auditable) {
	auditLog := item.CreateLogView()
	auditLog.Action = action
	if userID > 0 {
		auditLog.UserID = &userID
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := a.store.PersistLog(ctx, auditLog, data); err != nil {
		a.logger.Warn("Unable to create audit log entry",
			zap.String("resource_type", auditLog.ResourceType),
			zap.Int("resource_id", auditLog.ResourceID),
			zap.String("action", action),
			zap.Error(err))
		return
	}

	a.logger.Debug("Created audit log entry",
		zap.String("resource_type", auditLog.ResourceType),
		zap.Int("resource_id", auditLog.ResourceID),
		zap.String("action", action))
}

func NewAuditLog(store Store, logger *zap.Logger) *Auditlog {
	return &Auditlog{store: store, logger: logger}
}
