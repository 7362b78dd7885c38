package lending

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	custom_error "equiploan/pkg/errors"
	"equiploan/pkg/metadata"
	"equiploan/pkg/models"
)

// memStore is an in-memory Repository. Transactions are serialized by a
// mutex and rolled back by restoring a snapshot taken when they began.
type memStore struct {
	mu        sync.Mutex
	equipment map[int]models.Equipment
	requests  map[int]models.BorrowRequest
	nextID    int

	// failClaim makes ClaimEquipment report fewer rows than asked.
	failClaim bool
}

type memState struct {
	equipment map[int]models.Equipment
	requests  map[int]models.BorrowRequest
	nextID    int
}

func newMemStore(equipment ...models.Equipment) *memStore {
	m := &memStore{
		equipment: map[int]models.Equipment{},
		requests:  map[int]models.BorrowRequest{},
	}
	for _, e := range equipment {
		m.equipment[e.Number] = e
	}
	return m
}

func normalEquipment(numbers ...int) []models.Equipment {
	out := make([]models.Equipment, len(numbers))
	for i, n := range numbers {
		out[i] = models.Equipment{
			Number: n,
			Code:   fmt.Sprintf("EQ-%03d", n),
			Name:   "Infusion pump",
			Status: metadata.EquipmentNormal,
		}
	}
	return out
}

func (m *memStore) snapshot() memState {
	s := memState{
		equipment: make(map[int]models.Equipment, len(m.equipment)),
		requests:  make(map[int]models.BorrowRequest, len(m.requests)),
		nextID:    m.nextID,
	}
	for k, v := range m.equipment {
		s.equipment[k] = v
	}
	for k, v := range m.requests {
		v.Items = append([]models.BorrowItem(nil), v.Items...)
		s.requests[k] = v
	}
	return s
}

func (m *memStore) restore(s memState) {
	m.equipment = s.equipment
	m.requests = s.requests
	m.nextID = s.nextID
}

func (m *memStore) WithTransaction(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.snapshot()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(before)
		return err
	}
	return nil
}

func (m *memStore) GetRequest(ctx context.Context, id int) (*models.BorrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.request(id)
}

func (m *memStore) ListRequests(ctx context.Context, filter models.BorrowRequestFilter) ([]models.BorrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.BorrowRequest
	for _, req := range m.sortedRequests() {
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		if filter.BorrowerType != nil && req.BorrowerType != *filter.BorrowerType {
			continue
		}
		if filter.RequesterID != nil && (req.RequesterID == nil || *req.RequesterID != *filter.RequesterID) {
			continue
		}
		if filter.VisibleTo != nil && !req.IsVisibleTo(*filter.VisibleTo) {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (m *memStore) ListPendingExternalBefore(ctx context.Context, cutoff time.Time) ([]models.BorrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.BorrowRequest
	for _, req := range m.sortedRequests() {
		if req.BorrowerType == metadata.BorrowerExternal &&
			req.Status == metadata.RequestPending &&
			req.CreatedAt.Before(cutoff) {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *memStore) sortedRequests() []models.BorrowRequest {
	out := make([]models.BorrowRequest, 0, len(m.requests))
	for _, req := range m.requests {
		req.Items = append([]models.BorrowItem(nil), req.Items...)
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) request(id int) (*models.BorrowRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, custom_error.NewNotFoundError("borrow request", id)
	}
	req.Items = append([]models.BorrowItem(nil), req.Items...)
	return &req, nil
}

// equipmentSnapshot reads an item outside any transaction.
func (m *memStore) equipmentSnapshot(number int) models.Equipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.equipment[number]
}

type memTx struct {
	m *memStore
}

func (t *memTx) LockEquipment(ctx context.Context, numbers []int) ([]models.Equipment, error) {
	var out []models.Equipment
	for _, n := range numbers {
		if e, ok := t.m.equipment[n]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memTx) LockRequest(ctx context.Context, id int) (*models.BorrowRequest, error) {
	return t.m.request(id)
}

func (t *memTx) InsertRequest(ctx context.Context, req *models.BorrowRequest) (int, error) {
	t.m.nextID++
	stored := *req
	stored.ID = t.m.nextID
	stored.Items = nil
	t.m.requests[stored.ID] = stored
	return stored.ID, nil
}

func (t *memTx) InsertItems(ctx context.Context, requestID int, items []models.BorrowItem) error {
	req, ok := t.m.requests[requestID]
	if !ok {
		return custom_error.NewNotFoundError("borrow request", requestID)
	}
	for i, item := range items {
		item.ID = i + 1
		item.BorrowRequestID = requestID
		req.Items = append(req.Items, item)
	}
	t.m.requests[requestID] = req
	return nil
}

func (t *memTx) UpdateRequest(ctx context.Context, req *models.BorrowRequest) error {
	stored, ok := t.m.requests[req.ID]
	if !ok {
		return custom_error.NewNotFoundError("borrow request", req.ID)
	}
	updated := *req
	updated.Items = stored.Items
	t.m.requests[req.ID] = updated
	return nil
}

func (t *memTx) ClaimEquipment(ctx context.Context, requestID int, numbers []int, status metadata.EquipmentStatus, at time.Time) (int64, error) {
	var claimed int64
	for _, n := range numbers {
		e, ok := t.m.equipment[n]
		if !ok || e.Status != metadata.EquipmentNormal || e.CurrentRequestID != nil {
			continue
		}
		if t.m.failClaim && claimed == int64(len(numbers)-1) {
			continue
		}
		id := requestID
		e.Status = status
		e.CurrentRequestID = &id
		e.StatusChangedAt = at
		t.m.equipment[n] = e
		claimed++
	}
	return claimed, nil
}

func (t *memTx) UpdateHeldEquipment(ctx context.Context, requestID int, status metadata.EquipmentStatus, at time.Time) (int64, error) {
	return t.updateHeld(requestID, func(e *models.Equipment) {
		e.Status = status
		e.StatusChangedAt = at
	}), nil
}

func (t *memTx) ReleaseEquipment(ctx context.Context, requestID int, status metadata.EquipmentStatus, at time.Time) (int64, error) {
	return t.updateHeld(requestID, func(e *models.Equipment) {
		e.Status = status
		e.CurrentRequestID = nil
		e.StatusChangedAt = at
	}), nil
}

func (t *memTx) updateHeld(requestID int, apply func(e *models.Equipment)) int64 {
	var affected int64
	for n, e := range t.m.equipment {
		if e.CurrentRequestID != nil && *e.CurrentRequestID == requestID {
			apply(&e)
			t.m.equipment[n] = e
			affected++
		}
	}
	return affected
}
