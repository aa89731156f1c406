package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to TaskStatus }{
		{TaskUnassigned, TaskInQueue},
		{TaskInQueue, TaskAssigned},
		{TaskInQueue, TaskAccepted},
		{TaskAssigned, TaskAccepted},
		{TaskAssigned, TaskInQueue},
		{TaskAccepted, TaskInProgress},
		{TaskAccepted, TaskAssigned},
		{TaskAccepted, TaskInQueue},
		{TaskInProgress, TaskAccepted},
		{TaskInProgress, TaskPendingApproval},
		{TaskPendingApproval, TaskCompleted},
		{TaskPendingApproval, TaskAccepted},
		{TaskCompleted, TaskAssigned},
		{TaskCompleted, TaskInQueue},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransition(tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	denied := []struct{ from, to TaskStatus }{
		{TaskUnassigned, TaskAssigned},
		{TaskUnassigned, TaskCompleted},
		{TaskInQueue, TaskInProgress},
		{TaskAssigned, TaskInProgress},
		{TaskAssigned, TaskCompleted},
		{TaskAccepted, TaskPendingApproval},
		{TaskAccepted, TaskCompleted},
		{TaskInProgress, TaskCompleted},
		{TaskInProgress, TaskInQueue},
		{TaskPendingApproval, TaskInProgress},
		{TaskCompleted, TaskPendingApproval},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransition(tc.to), "%s -> %s must be rejected", tc.from, tc.to)
	}
}

func TestMediationStatusMachine(t *testing.T) {
	assert.True(t, MediationPending.CanTransition(MediationAccepted))
	assert.True(t, MediationPending.CanTransition(MediationRejected))
	assert.True(t, MediationAccepted.CanTransition(MediationInProgress))
	assert.True(t, MediationInProgress.CanTransition(MediationResolved))

	assert.False(t, MediationPending.CanTransition(MediationResolved), "no skipping to resolved")
	assert.False(t, MediationResolved.CanTransition(MediationInProgress), "terminal states are final")
	assert.False(t, MediationCancelled.CanTransition(MediationPending))

	for _, s := range []MediationStatus{MediationPending, MediationAccepted, MediationInProgress} {
		assert.True(t, s.Active())
		assert.False(t, s.Terminal())
	}
	for _, s := range []MediationStatus{MediationResolved, MediationRejected, MediationCancelled} {
		assert.True(t, s.Terminal())
		assert.False(t, s.Active())
	}
}

func TestApprovalStageSatisfied(t *testing.T) {
	s := ApprovalStage{RequiredApprovals: 2}
	assert.False(t, s.Satisfied())
	s.ApprovedCount = 1
	assert.False(t, s.Satisfied())
	s.ApprovedCount = 2
	assert.True(t, s.Satisfied())
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleTrader.Valid())
	assert.True(t, RoleTechnicalCommittee.Valid())
	assert.True(t, RoleHigherCommittee.Valid())
	assert.False(t, Role("admin").Valid())
	assert.False(t, Role("").Valid())
}

func TestComplaintPatchEmpty(t *testing.T) {
	assert.True(t, ComplaintPatch{}.Empty())
	title := "t"
	assert.False(t, ComplaintPatch{Title: &title}.Empty())
}
