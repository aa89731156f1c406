package models

import "time"

// Status is the domain status of a complaint as traders and committees see it.
type Status string

const (
	StatusSubmitted           Status = "submitted"
	StatusUnderReview         Status = "under_review"
	StatusEscalated           Status = "escalated"
	StatusResolved            Status = "resolved"
	StatusRejected            Status = "rejected"
	StatusMediationPending    Status = "mediation_pending"
	StatusMediationInProgress Status = "mediation_in_progress"
)

// TaskStatus is the operational status driving who is doing what with the
// complaint right now. Transitions are restricted; see CanTransition.
type TaskStatus string

const (
	TaskUnassigned      TaskStatus = "unassigned"
	TaskInQueue         TaskStatus = "in_queue"
	TaskAssigned        TaskStatus = "assigned"
	TaskAccepted        TaskStatus = "accepted"
	TaskInProgress      TaskStatus = "in_progress"
	TaskPendingApproval TaskStatus = "pending_approval"
	TaskCompleted       TaskStatus = "completed"
)

// taskTransitions enumerates every legal task_status edge. The only backward
// edges are accepted→in_queue (reject), in_progress→accepted (claim release)
// and pending_approval→accepted (approval rejection).
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskUnassigned:      {TaskInQueue},
	TaskInQueue:         {TaskAssigned, TaskAccepted},
	TaskAssigned:        {TaskAccepted, TaskInQueue},
	TaskAccepted:        {TaskInProgress, TaskAssigned, TaskInQueue},
	TaskInProgress:      {TaskAccepted, TaskPendingApproval},
	TaskPendingApproval: {TaskCompleted, TaskAccepted},
	TaskCompleted:       {TaskAssigned, TaskInQueue},
}

// CanTransition reports whether moving from s to next is a legal edge.
// completed→assigned / completed→in_queue exist only for the reopen flow.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, t := range taskTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// EscalationState tracks which out-of-normal-flow process currently owns the
// complaint. It returns to EscalationNone once that process reaches a
// terminal decision.
type EscalationState string

const (
	EscalationNone         EscalationState = "none"
	EscalationTCManual     EscalationState = "tc_manual"
	EscalationTraderAppeal EscalationState = "trader_appeal"
	EscalationMediation    EscalationState = "mediation"
)

type Complaint struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Priority        string          `json:"priority"`
	TraderID        string          `json:"traderId"`
	AssignedTo      *string         `json:"assignedTo"`
	Status          Status          `json:"status"`
	TaskStatus      TaskStatus      `json:"taskStatus"`
	EscalationState EscalationState `json:"escalationState"`

	// LockVersion increments by exactly 1 on every committed mutation; stale
	// writers are rejected with a conflict.
	LockVersion int `json:"lockVersion"`

	// ClaimedBy marks the single user actively working the complaint. Set only
	// while TaskStatus is in_progress.
	ClaimedBy *string `json:"claimedBy"`

	ReopenedCount    int        `json:"reopenedCount"`
	LastAssignedTCID *string    `json:"lastAssignedTcId"`
	AcceptedAt       *time.Time `json:"acceptedAt"`
	ResolvedAt       *time.Time `json:"resolvedAt"`
	CanReopenUntil   *time.Time `json:"canReopenUntil"`
	ClosedAt         *time.Time `json:"closedAt"`

	SLAWarningSent     bool `json:"slaWarningSent"`
	ReopenReminderSent bool `json:"reopenReminderSent"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ComplaintPatch lists exactly the externally settable fields for the
// optimistic-lock update path. Nil means "leave untouched".
type ComplaintPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Priority    *string `json:"priority"`
	Status      *Status `json:"status"`
	AssignedTo  *string `json:"assignedTo"`
}

// Empty reports whether the patch changes nothing.
func (p ComplaintPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Priority == nil && p.Status == nil && p.AssignedTo == nil
}
