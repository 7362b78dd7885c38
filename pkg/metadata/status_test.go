package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestStatusNext(t *testing.T) {
	tests := []struct {
		name   string
		from   RequestStatus
		action Transition
		want   RequestStatus
		ok     bool
	}{
		{"approve pending", RequestPending, TransitionApprove, RequestApproved, true},
		{"reject pending", RequestPending, TransitionReject, RequestRejected, true},
		{"expire pending", RequestPending, TransitionExpire, RequestRejected, true},
		{"return approved", RequestApproved, TransitionReturn, RequestReturned, true},
		{"return pending", RequestPending, TransitionReturn, "", false},
		{"approve approved", RequestApproved, TransitionApprove, "", false},
		{"reject approved", RequestApproved, TransitionReject, "", false},
		{"approve returned", RequestReturned, TransitionApprove, "", false},
		{"reject rejected", RequestRejected, TransitionReject, "", false},
		{"return returned", RequestReturned, TransitionReturn, "", false},
		{"unknown transition", RequestPending, Transition("cancel"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.from.Next(tt.action)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminalStatusesAllowNoTransition(t *testing.T) {
	for _, status := range []RequestStatus{RequestRejected, RequestReturned} {
		assert.True(t, status.IsTerminal())
		for _, action := range []Transition{TransitionApprove, TransitionReject, TransitionReturn, TransitionExpire} {
			_, ok := status.Next(action)
			assert.False(t, ok, "%s must not accept %s", status, action)
		}
	}
}

func TestNewReturnCondition(t *testing.T) {
	tests := []struct {
		input   string
		want    ReturnCondition
		wantErr bool
	}{
		{"NORMAL", ConditionNormal, false},
		{" broken ", ConditionBroken, false},
		{"wait_dispose", ConditionWaitDispose, false},
		{"LOST", ConditionLost, false},
		{"DISPOSED", ConditionDisposed, false},
		{"IN_USE", "", true},
		{"RESERVED", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NewReturnCondition(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.EquipmentStatus().IsHeld())
		})
	}
}

func TestNewBorrowerType(t *testing.T) {
	got, err := NewBorrowerType("external")
	assert.NoError(t, err)
	assert.Equal(t, BorrowerExternal, got)

	_, err = NewBorrowerType("guest")
	assert.Error(t, err)
}

func TestEquipmentStatusIsHeld(t *testing.T) {
	assert.True(t, EquipmentReserved.IsHeld())
	assert.True(t, EquipmentInUse.IsHeld())
	assert.False(t, EquipmentNormal.IsHeld())
	assert.False(t, EquipmentBroken.IsHeld())

	_, err := NewEquipmentStatus("borrowed by someone")
	assert.Error(t, err)
}
