package auditlog

import (
	"context"
	"errors"
	"testing"

	"equiploan/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) PersistLog(ctx context.Context, auditlog models.AuditLog, data interface{}) error {
	args := m.Called(auditlog, data)
	return args.Error(0)
}

type fakeAuditable struct{ id int }

func (f fakeAuditable) CreateLogView() models.AuditLog {
	return models.AuditLog{ResourceID: f.id, ResourceType: "borrow_request"}
}

func TestLogPersistsActionAndUser(t *testing.T) {
	store := new(MockStore)
	data := map[string]interface{}{"status": "APPROVED"}
	store.On("PersistLog", mock.MatchedBy(func(l models.AuditLog) bool {
		return l.ResourceID == 7 && l.Action == "approve" && l.UserID != nil && *l.UserID == 3
	}), data).Return(nil)

	NewAuditLog(store, zap.NewNop()).Log("approve", 3, data, fakeAuditable{id: 7})

	store.AssertExpectations(t)
}

func TestLogSwallowsStoreErrors(t *testing.T) {
	store := new(MockStore)
	store.On("PersistLog", mock.MatchedBy(func(l models.AuditLog) bool {
		return l.UserID == nil
	}), nil).Return(errors.New("db down"))

	assert.NotPanics(t, func() {
		NewAuditLog(store, zap.NewNop()).Log("expire", 0, nil, fakeAuditable{id: 1})
	})
	store.AssertExpectations(t)
}
