package lending

import (
	"context"
	"sync"
	"testing"
	"time"

	"equiploan/pkg/auditlog"
	custom_error "equiploan/pkg/errors"
	"equiploan/pkg/metadata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAuditLog struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingAuditLog) Log(action string, userID int, data interface{}, item auditlog.Auditable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view := item.CreateLogView()
	r.actions = append(r.actions, action+":"+view.ResourceType)
}

func (r *recordingAuditLog) count(entry string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.actions {
		if a == entry {
			n++
		}
	}
	return n
}

func TestListExpiredPendingSelectsStaleExternalRequests(t *testing.T) {
	store := newMemStore(normalEquipment(101, 102, 103)...)
	s, now := newTestService(store)
	ctx := context.Background()

	staleID, err := s.SubmitBorrowRequest(ctx, externalCmd(101))
	require.NoError(t, err)
	_, err = s.SubmitBorrowRequest(ctx, internalCmd(102))
	require.NoError(t, err)

	*now = baseTime.Add(ExpiryPolicy)
	freshCmd := externalCmd(103)
	freshCmd.ReturnDue = now.AddDate(0, 0, 7)
	_, err = s.SubmitBorrowRequest(ctx, freshCmd)
	require.NoError(t, err)

	candidates, err := s.ListExpiredPending(ctx, baseTime.Add(ExpiryPolicy+time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, staleID, candidates[0].RequestID)
	assert.Equal(t, "Ward 7 nursing", candidates[0].ExternalName)
	assert.Equal(t, "Surgery", *candidates[0].ExternalDept)
	assert.Equal(t, 3, candidates[0].AgeDays)
	require.Len(t, candidates[0].Items, 1)
	assert.Equal(t, 101, candidates[0].Items[0].EquipmentNumber)

	candidates, err = s.ListExpiredPending(ctx, baseTime.Add(ExpiryPolicy))
	require.NoError(t, err)
	assert.Empty(t, candidates, "exactly three days old is not yet expired")

	assert.Equal(t, metadata.EquipmentReserved, store.equipmentSnapshot(101).Status)
}

func TestSweepExpiredRejectsAndReleases(t *testing.T) {
	store := newMemStore(normalEquipment(101, 102)...)
	s, _ := newTestService(store)
	audit := &recordingAuditLog{}
	s.auditLog = audit
	ctx := context.Background()

	id, err := s.SubmitBorrowRequest(ctx, externalCmd(101, 102))
	require.NoError(t, err)

	sweepTime := baseTime.AddDate(0, 0, 4)
	result, err := s.SweepExpired(ctx, sweepTime, adminID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, []int{id}, result.Processed)
	assert.NotEmpty(t, result.RunID)

	req, err := s.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, metadata.RequestRejected, req.Status)
	assert.Equal(t, ExpiryReason, *req.RejectReason)
	assert.Equal(t, adminID, *req.RejectedByID)
	assert.Equal(t, sweepTime, *req.RejectedAt)

	for _, n := range []int{101, 102} {
		e := store.equipmentSnapshot(n)
		assert.Equal(t, metadata.EquipmentNormal, e.Status)
		assert.Nil(t, e.CurrentRequestID)
		assert.Equal(t, sweepTime, e.StatusChangedAt)
	}

	again, err := s.SweepExpired(ctx, sweepTime, adminID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Count)
	assert.Empty(t, again.Processed)
	assert.NotEqual(t, result.RunID, again.RunID)

	s.Drain()
	assert.Equal(t, 1, audit.count("expire:borrow_request"))
	assert.Equal(t, 2, audit.count("expire:equipment"))
	assert.Equal(t, 1, audit.count("submit:borrow_request"))
}

func TestSweepSkipsRequestsApprovedMeanwhile(t *testing.T) {
	store := newMemStore(normalEquipment(101)...)
	s, _ := newTestService(store)
	ctx := context.Background()

	id, err := s.SubmitBorrowRequest(ctx, externalCmd(101))
	require.NoError(t, err)
	sweepTime := baseTime.AddDate(0, 0, 4)

	candidates, err := s.ListExpiredPending(ctx, sweepTime)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	_, err = s.Approve(ctx, id, adminID, nil)
	require.NoError(t, err)

	req, err := s.expire(ctx, id, adminID, sweepTime)
	assert.Nil(t, req)
	var transitionErr *custom_error.InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, metadata.EquipmentInUse, store.equipmentSnapshot(101).Status)

	result, err := s.SweepExpired(ctx, sweepTime, adminID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
}

func TestSweepRequiresOperator(t *testing.T) {
	s, _ := newTestService(newMemStore())

	_, err := s.SweepExpired(context.Background(), baseTime, 0)

	var validationErr *custom_error.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "operator_id", validationErr.Field)
}
