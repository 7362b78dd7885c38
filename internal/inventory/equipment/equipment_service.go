package equipment

import (
	"context"

	"equiploan/internal/repository"
	"equiploan/pkg/models"
)

type Repository interface {
	GetEquipment(ctx context.Context, number int) (*models.Equipment, error)
	GetEquipmentBy(ctx context.Context, conditions repository.QueryBuilder, availableOnly bool) ([]models.Equipment, error)
}

type HistoryReader interface {
	GetResourceLog(ctx context.Context, id int, resourceType string) ([]models.AuditLog, error)
}

type EquipmentService struct {
	repo    Repository
	history HistoryReader
}

func NewEquipmentService(repo Repository, history HistoryReader) *EquipmentService {
	return &EquipmentService{repo: repo, history: history}
}

func (s *EquipmentService) GetEquipment(ctx context.Context, number int) (*models.Equipment, error) {
	return s.repo.GetEquipment(ctx, number)
}

func (s *EquipmentService) ListEquipment(ctx context.Context, filter models.EquipmentFilter) ([]models.Equipment, error) {
	qb := repository.NewQueryBuilder()
	if filter.Status != nil {
		qb.AddCondition("status", string(*filter.Status))
	}
	if filter.CategoryID != nil {
		qb.AddCondition("category_id", *filter.CategoryID)
	}

	equipment, err := s.repo.GetEquipmentBy(ctx, qb, filter.Available)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		equipment = []models.Equipment{}
	}
	return equipment, nil
}

// EquipmentHistory lists the audit trail of one item, oldest first.
func (s *EquipmentService) EquipmentHistory(ctx context.Context, number int) ([]models.AuditLog, error) {
	e, err := s.repo.GetEquipment(ctx, number)
	if err != nil {
		return nil, err
	}

	view := e.CreateLogView()
	logs, err := s.history.GetResourceLog(ctx, view.ResourceID, view.ResourceType)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}
