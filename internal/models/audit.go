package models

import "time"

// Audit action codes. Reopen deliberately has two codes so "no alternate
// reviewer was available" is distinguishable from a normal reassignment.
const (
	ActionQueueAdd       = "queue.add"
	ActionQueueRebalance = "queue.rebalance"

	ActionTaskAccept         = "task.accept"
	ActionTaskReject         = "task.reject"
	ActionTaskStart          = "task.start"
	ActionTaskRelease        = "task.release"
	ActionTaskSubmit         = "task.submit_for_approval"
	ActionTaskApprove        = "task.approve"
	ActionTaskComplete       = "task.complete"
	ActionTaskApprovalReject = "task.approval_rejected"

	ActionComplaintCreate = "complaint.create"
	ActionComplaintUpdate = "complaint.update"

	ActionEscalate        = "complaint.escalate"
	ActionAppealFile      = "appeal.file"
	ActionAppealDecide    = "appeal.decide"
	ActionMediationOpen   = "mediation.request"
	ActionMediationUpdate = "mediation.update"
	ActionReassign        = "complaint.reassign"
	ActionReopen          = "complaint.reopen"
	ActionReopenFallback  = "complaint.reopen_same_reviewer"

	ActionSLAEscalate = "workflow.sla_escalate"
	ActionSLAWarning  = "workflow.sla_warning"
	ActionAutoClose   = "workflow.auto_close"
)

// SystemActorID attributes scheduler-driven mutations in the audit trail.
// It is a reserved id, never a row in users.
const SystemActorID = "00000000-0000-0000-0000-000000000000"

const (
	TargetComplaint = "complaint"
	TargetAppeal    = "appeal"
	TargetMediation = "mediation_request"
	TargetUser      = "user"
)

type AuditLog struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	TargetType string    `json:"targetType"`
	TargetID   string    `json:"targetId"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"createdAt"`
}
