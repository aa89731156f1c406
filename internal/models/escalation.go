package models

import "time"

type EscalationType string

const (
	EscalationTypeManual       EscalationType = "manual"
	EscalationTypeSLAViolation EscalationType = "sla_violation"
	EscalationTypeTraderAppeal EscalationType = "trader_appeal"
	EscalationTypeMediation    EscalationType = "mediation"
)

// Escalation is an append-only record of why a complaint left the normal
// flow, or of a lateral reassignment kept for audit purposes.
type Escalation struct {
	ID          string         `json:"id"`
	ComplaintID string         `json:"complaintId"`
	Type        EscalationType `json:"type"`
	TargetRole  Role           `json:"targetRole"`
	Reason      string         `json:"reason"`
	EscalatedBy string         `json:"escalatedBy"`
	ResolvedBy  *string        `json:"resolvedBy"`
	ResolvedAt  *time.Time     `json:"resolvedAt"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type AppealStatus string

const (
	AppealPending   AppealStatus = "pending"
	AppealAccepted  AppealStatus = "accepted"
	AppealRejected  AppealStatus = "rejected"
	AppealWithdrawn AppealStatus = "withdrawn"
)

type Appeal struct {
	ID            string       `json:"id"`
	ComplaintID   string       `json:"complaintId"`
	TraderID      string       `json:"traderId"`
	Reason        string       `json:"reason"`
	Status        AppealStatus `json:"status"`
	DecidedBy     *string      `json:"decidedBy"`
	DecidedAt     *time.Time   `json:"decidedAt"`
	DecisionNotes string       `json:"decisionNotes"`
	CreatedAt     time.Time    `json:"createdAt"`
}

type MediationStatus string

const (
	MediationPending    MediationStatus = "pending"
	MediationAccepted   MediationStatus = "accepted"
	MediationInProgress MediationStatus = "in_progress"
	MediationResolved   MediationStatus = "resolved"
	MediationRejected   MediationStatus = "rejected"
	MediationCancelled  MediationStatus = "cancelled"
)

// Active reports whether the request still owns the complaint's escalation
// state (only one active mediation may exist per complaint).
func (s MediationStatus) Active() bool {
	return s == MediationPending || s == MediationAccepted || s == MediationInProgress
}

// Terminal reports whether the mediation reached a final decision.
func (s MediationStatus) Terminal() bool {
	return s == MediationResolved || s == MediationRejected || s == MediationCancelled
}

var mediationTransitions = map[MediationStatus][]MediationStatus{
	MediationPending:    {MediationAccepted, MediationRejected, MediationCancelled},
	MediationAccepted:   {MediationInProgress, MediationRejected, MediationCancelled},
	MediationInProgress: {MediationResolved, MediationRejected, MediationCancelled},
}

func (s MediationStatus) CanTransition(next MediationStatus) bool {
	for _, t := range mediationTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type MediationRequest struct {
	ID          string          `json:"id"`
	ComplaintID string          `json:"complaintId"`
	RequestedBy string          `json:"requestedBy"`
	Reason      string          `json:"reason"`
	Status      MediationStatus `json:"status"`
	UpdatedBy   *string         `json:"updatedBy"`
	ResolvedAt  *time.Time      `json:"resolvedAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ApprovalStage tracks the multi-reviewer quorum for a task sitting in
// pending_approval: the stage satisfies once ApprovedCount reaches
// RequiredApprovals. A rejection closes the stage.
type ApprovalStage struct {
	ID                string     `json:"id"`
	ComplaintID       string     `json:"complaintId"`
	RequiredApprovals int        `json:"requiredApprovals"`
	ApprovedCount     int        `json:"approvedCount"`
	Closed            bool       `json:"closed"`
	CreatedAt         time.Time  `json:"createdAt"`
	ClosedAt          *time.Time `json:"closedAt"`
}

func (s ApprovalStage) Satisfied() bool {
	return s.ApprovedCount >= s.RequiredApprovals
}
