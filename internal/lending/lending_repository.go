package lending

import (
	"context"
	"fmt"
	"time"

	"equiploan/internal/repository"
	custom_error "equiploan/pkg/errors"
	"equiploan/pkg/metadata"
	"equiploan/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// Repository is the Borrow Request Ledger plus the equipment rows it holds.
type Repository interface {
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
	GetRequest(ctx context.Context, id int) (*models.BorrowRequest, error)
	ListRequests(ctx context.Context, filter models.BorrowRequestFilter) ([]models.BorrowRequest, error)
	ListPendingExternalBefore(ctx context.Context, cutoff time.Time) ([]models.BorrowRequest, error)
}

// Tx is the set of writes available inside one lending transaction. Lock*
// methods hold row locks until the transaction ends.
type Tx interface {
	LockEquipment(ctx context.Context, numbers []int) ([]models.Equipment, error)
	LockRequest(ctx context.Context, id int) (*models.BorrowRequest, error)
	InsertRequest(ctx context.Context, req *models.BorrowRequest) (int, error)
	InsertItems(ctx context.Context, requestID int, items []models.BorrowItem) error
	UpdateRequest(ctx context.Context, req *models.BorrowRequest) error
	// ClaimEquipment moves free items to status and points them at requestID.
	// It returns how many rows were claimed.
	ClaimEquipment(ctx context.Context, requestID int, numbers []int, status metadata.EquipmentStatus, at time.Time) (int64, error)
	UpdateHeldEquipment(ctx context.Context, requestID int, status metadata.EquipmentStatus, at time.Time) (int64, error)
	ReleaseEquipment(ctx context.Context, requestID int, status metadata.EquipmentStatus, at time.Time) (int64, error)
}

type PostgresRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *PostgresRepository {
	return &PostgresRepository{repository: r}
}

func (r *PostgresRepository) WithTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return repository.WithTransaction(ctx, r.repository.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		return fn(&pgTx{tx: tx})
	})
}

// selecter is satisfied by both *goqu.Database and *goqu.TxDatabase.
type selecter interface {
	From(from ...interface{}) *goqu.SelectDataset
}

// updater is satisfied by *goqu.TxDatabase and goqu.DialectWrapper.
type updater interface {
	selecter
	Update(table interface{}) *goqu.UpdateDataset
}

var requestColumns = []interface{}{
	"id", "borrower_type", "requester_id", "submitted_by_id", "external_name", "external_dept", "external_phone",
	"status", "reason", "borrow_date", "return_due", "actual_return_date", "return_condition",
	"return_notes", "approved_by_id", "approved_at", "rejected_by_id", "rejected_at",
	"reject_reason", "received_by_id", "created_at",
}

var equipmentColumns = []interface{}{
	"number", "code", "idnum", "name", "description", "category_id", "price",
	"received_at", "status", "current_request_id", "status_changed_at",
}

func (r *PostgresRepository) GetRequest(ctx context.Context, id int) (*models.BorrowRequest, error) {
	var req models.BorrowRequest

	found, err := r.repository.GoquDBWrapper.
		From("borrow_requests").
		Select(requestColumns...).
		Where(goqu.Ex{"id": id}).
		Executor().
		ScanStructContext(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, custom_error.NewNotFoundError("borrow request", id)
	}

	if err := attachItems(ctx, r.repository.GoquDBWrapper, []*models.BorrowRequest{&req}); err != nil {
		return nil, err
	}

	return &req, nil
}

func (r *PostgresRepository) ListRequests(ctx context.Context, filter models.BorrowRequestFilter) ([]models.BorrowRequest, error) {
	return r.scanRequests(ctx, listRequestsQuery(r.repository.GoquDBWrapper, filter))
}

func listRequestsQuery(db selecter, filter models.BorrowRequestFilter) *goqu.SelectDataset {
	qb := repository.NewQueryBuilder()
	if filter.Status != nil {
		qb.AddCondition("status", string(*filter.Status))
	}
	if filter.BorrowerType != nil {
		qb.AddCondition("borrower_type", string(*filter.BorrowerType))
	}
	if filter.RequesterID != nil {
		qb.AddCondition("requester_id", *filter.RequesterID)
	}

	query := db.
		From("borrow_requests").
		Select(requestColumns...).
		Order(goqu.C("id").Desc())
	if qb.HasConditions() {
		query = query.Where(qb.BuildConditions(nil))
	}
	if filter.VisibleTo != nil {
		query = query.Where(goqu.Or(
			goqu.C("requester_id").Eq(*filter.VisibleTo),
			goqu.C("submitted_by_id").Eq(*filter.VisibleTo),
		))
	}

	return query
}

func (r *PostgresRepository) ListPendingExternalBefore(ctx context.Context, cutoff time.Time) ([]models.BorrowRequest, error) {
	query := r.repository.GoquDBWrapper.
		From("borrow_requests").
		Select(requestColumns...).
		Where(
			goqu.C("borrower_type").Eq(string(metadata.BorrowerExternal)),
			goqu.C("status").Eq(string(metadata.RequestPending)),
			goqu.C("created_at").Lt(cutoff),
		).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())

	return r.scanRequests(ctx, query)
}

func (r *PostgresRepository) scanRequests(ctx context.Context, query *goqu.SelectDataset) ([]models.BorrowRequest, error) {
	var requests []models.BorrowRequest
	if err := query.Executor().ScanStructsContext(ctx, &requests); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	ptrs := make([]*models.BorrowRequest, len(requests))
	for i := range requests {
		ptrs[i] = &requests[i]
	}
	if err := attachItems(ctx, r.repository.GoquDBWrapper, ptrs); err != nil {
		return nil, err
	}

	return requests, nil
}

func attachItems(ctx context.Context, db selecter, requests []*models.BorrowRequest) error {
	if len(requests) == 0 {
		return nil
	}

	ids := make([]int, len(requests))
	byID := make(map[int]*models.BorrowRequest, len(requests))
	for i, req := range requests {
		ids[i] = req.ID
		byID[req.ID] = req
		req.Items = []models.BorrowItem{}
	}

	var items []models.BorrowItem
	err := db.From(goqu.T("borrow_items").As("bi")).
		Join(goqu.T("equipment").As("e"), goqu.On(goqu.Ex{"bi.equipment_number": goqu.I("e.number")})).
		Select(
			goqu.I("bi.id").As("id"),
			goqu.I("bi.borrow_request_id").As("borrow_request_id"),
			goqu.I("bi.equipment_number").As("equipment_number"),
			goqu.I("e.code").As("equipment_code"),
			goqu.I("e.name").As("equipment_name"),
			goqu.I("bi.quantity").As("quantity"),
		).
		Where(goqu.Ex{"bi.borrow_request_id": ids}).
		Order(goqu.I("bi.borrow_request_id").Asc(), goqu.I("bi.equipment_number").Asc()).
		Executor().
		ScanStructsContext(ctx, &items)
	if err != nil {
		return fmt.Errorf("failed to load borrow items: %w", err)
	}

	for _, item := range items {
		if req, ok := byID[item.BorrowRequestID]; ok {
			req.Items = append(req.Items, item)
		}
	}
	return nil
}

type pgTx struct {
	tx *goqu.TxDatabase
}

func (t *pgTx) LockEquipment(ctx context.Context, numbers []int) ([]models.Equipment, error) {
	var equipment []models.Equipment

	err := lockEquipmentQuery(t.tx, numbers).
		Executor().
		ScanStructsContext(ctx, &equipment)
	if err != nil {
		return nil, fmt.Errorf("failed to lock equipment: %w", err)
	}

	return equipment, nil
}

// lockEquipmentQuery takes row locks in number order.
func lockEquipmentQuery(db selecter, numbers []int) *goqu.SelectDataset {
	return db.From("equipment").
		Select(equipmentColumns...).
		Where(goqu.Ex{"number": numbers}).
		Order(goqu.C("number").Asc()).
		ForUpdate(exp.Wait)
}

func (t *pgTx) LockRequest(ctx context.Context, id int) (*models.BorrowRequest, error) {
	var req models.BorrowRequest

	found, err := t.tx.From("borrow_requests").
		Select(requestColumns...).
		Where(goqu.Ex{"id": id}).
		ForUpdate(exp.Wait).
		Executor().
		ScanStructContext(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to lock borrow request: %w", err)
	}
	if !found {
		return nil, custom_error.NewNotFoundError("borrow request", id)
	}

	if err := attachItems(ctx, t.tx, []*models.BorrowRequest{&req}); err != nil {
		return nil, err
	}

	return &req, nil
}

func (t *pgTx) InsertRequest(ctx context.Context, req *models.BorrowRequest) (int, error) {
	var id int

	_, err := t.tx.Insert("borrow_requests").
		Rows(goqu.Record{
			"borrower_type":   string(req.BorrowerType),
			"requester_id":    req.RequesterID,
			"submitted_by_id": req.SubmittedByID,
			"external_name":   req.ExternalName,
			"external_dept":   req.ExternalDept,
			"external_phone":  req.ExternalPhone,
			"status":          string(req.Status),
			"reason":          req.Reason,
			"borrow_date":     req.BorrowDate,
			"return_due":      req.ReturnDue,
			"approved_by_id":  req.ApprovedByID,
			"approved_at":     req.ApprovedAt,
			"created_at":      req.CreatedAt,
		}).
		Returning("id").
		Executor().
		ScanValContext(ctx, &id)
	if err != nil {
		return 0, custom_error.FromPQ("failed to insert borrow request", err)
	}

	return id, nil
}

func (t *pgTx) InsertItems(ctx context.Context, requestID int, items []models.BorrowItem) error {
	rows := make([]interface{}, len(items))
	for i, item := range items {
		rows[i] = goqu.Record{
			"borrow_request_id": requestID,
			"equipment_number":  item.EquipmentNumber,
			"quantity":          item.Quantity,
		}
	}

	if _, err := t.tx.Insert("borrow_items").Rows(rows...).Executor().ExecContext(ctx); err != nil {
		return custom_error.FromPQ("failed to insert borrow items", err)
	}

	return nil
}

func (t *pgTx) UpdateRequest(ctx context.Context, req *models.BorrowRequest) error {
	var returnCondition *string
	if req.ReturnCondition != nil {
		c := string(*req.ReturnCondition)
		returnCondition = &c
	}

	result, err := t.tx.Update("borrow_requests").
		Set(goqu.Record{
			"status":             string(req.Status),
			"borrow_date":        req.BorrowDate,
			"actual_return_date": req.ActualReturnDate,
			"return_condition":   returnCondition,
			"return_notes":       req.ReturnNotes,
			"approved_by_id":     req.ApprovedByID,
			"approved_at":        req.ApprovedAt,
			"rejected_by_id":     req.RejectedByID,
			"rejected_at":        req.RejectedAt,
			"reject_reason":      req.RejectReason,
			"received_by_id":     req.ReceivedByID,
		}).
		Where(goqu.Ex{"id": req.ID}).
		Executor().
		ExecContext(ctx)
	if err != nil {
		return custom_error.FromPQ("failed to update borrow request", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to fetch affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return custom_error.NewNotFoundError("borrow request", req.ID)
	}

	return nil
}

func (t *pgTx) ClaimEquipment(ctx context.Context, requestID int, numbers []int, status metadata.EquipmentStatus, at time.Time) (int64, error) {
	return t.exec(ctx, claimEquipmentQuery(t.tx, requestID, numbers, status, at))
}

// claimEquipmentQuery only matches free NORMAL rows; a caller comparing the
// affected count with len(numbers) detects any item taken by another request.
func claimEquipmentQuery(db updater, requestID int, numbers []int, status metadata.EquipmentStatus, at time.Time) *goqu.UpdateDataset {
	return db.Update("equipment").
		Set(goqu.Record{"status": string(status), "current_request_id": requestID, "status_changed_at": at}).
		Where(goqu.Ex{"number": numbers, "status": string(metadata.EquipmentNormal), "current_request_id": nil})
}

func (t *pgTx) UpdateHeldEquipment(ctx context.Context, requestID int, status metadata.EquipmentStatus, at time.Time) (int64, error) {
	return t.updateEquipment(ctx,
		goqu.Record{"status": string(status), "status_changed_at": at},
		goqu.Ex{"current_request_id": requestID},
	)
}

func (t *pgTx) ReleaseEquipment(ctx context.Context, requestID int, status metadata.EquipmentStatus, at time.Time) (int64, error) {
	return t.updateEquipment(ctx,
		goqu.Record{"status": string(status), "current_request_id": nil, "status_changed_at": at},
		goqu.Ex{"current_request_id": requestID},
	)
}

func (t *pgTx) updateEquipment(ctx context.Context, set goqu.Record, where goqu.Ex) (int64, error) {
	return t.exec(ctx, t.tx.Update("equipment").Set(set).Where(where))
}

func (t *pgTx) exec(ctx context.Context, query *goqu.UpdateDataset) (int64, error) {
	result, err := query.Executor().ExecContext(ctx)
	if err != nil {
		return 0, custom_error.FromPQ("failed to update equipment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to fetch affected rows: %w", err)
	}

	return rowsAffected, nil
}
