package equipment

import (
	"context"
	"fmt"

	"equiploan/internal/repository"
	custom_error "equiploan/pkg/errors"
	"equiploan/pkg/metadata"
	"equiploan/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

type EquipmentRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *EquipmentRepository {
	return &EquipmentRepository{
		repository: r,
	}
}

func (r *EquipmentRepository) GetEquipment(ctx context.Context, number int) (*models.Equipment, error) {
	var equipment models.Equipment

	found, err := r.getEquipmentQuery().
		Where(goqu.Ex{"e.number": number}).
		Executor().
		ScanStructContext(ctx, &equipment)
	if err != nil {
		return nil, fmt.Errorf("unable to select equipment from database: %w", err)
	}
	if !found {
		return nil, custom_error.NewNotFoundError("equipment", number)
	}

	return &equipment, nil
}

func (r *EquipmentRepository) GetEquipmentBy(ctx context.Context, conditions repository.QueryBuilder, availableOnly bool) ([]models.Equipment, error) {
	aliases := map[string]string{
		"status":      "e.status",
		"category_id": "e.category_id",
	}

	query := r.getEquipmentQuery()
	if conditions.HasConditions() {
		query = query.Where(conditions.BuildConditions(aliases))
	}
	if availableOnly {
		query = query.Where(goqu.Ex{
			"e.status":             string(metadata.EquipmentNormal),
			"e.current_request_id": nil,
		})
	}

	var equipment []models.Equipment
	if err := query.Order(goqu.I("e.number").Asc()).Executor().ScanStructsContext(ctx, &equipment); err != nil {
		return nil, fmt.Errorf("unable to select equipment from database: %w", err)
	}

	return equipment, nil
}

func (r *EquipmentRepository) getEquipmentQuery() *goqu.SelectDataset {
	return r.repository.GoquDBWrapper.
		From(goqu.T("equipment").As("e")).
		LeftJoin(goqu.T("categories").As("c"), goqu.On(goqu.Ex{"e.category_id": goqu.I("c.id")})).
		Select(
			goqu.I("e.number").As("number"),
			goqu.I("e.code").As("code"),
			goqu.I("e.idnum").As("idnum"),
			goqu.I("e.name").As("name"),
			goqu.I("e.description").As("description"),
			goqu.I("e.category_id").As("category_id"),
			goqu.COALESCE(goqu.I("c.name"), "").As("category_name"),
			goqu.I("e.price").As("price"),
			goqu.I("e.received_at").As("received_at"),
			goqu.I("e.status").As("status"),
			goqu.I("e.current_request_id").As("current_request_id"),
			goqu.I("e.status_changed_at").As("status_changed_at"),
		)
}
