package repository

import (
	"context"
	"time"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
)

// Lookup methods return (nil, nil) when the row does not exist.

type ComplaintRepository interface {
	Create(ctx context.Context, c *models.Complaint) error
	Get(ctx context.Context, id string) (*models.Complaint, error)

	// UpdateVersioned writes the full row guarded by the lock_version the
	// caller read: the UPDATE matches on c.LockVersion and bumps it by one.
	// Returns ErrVersionMismatch (and leaves c untouched) when a concurrent
	// writer got there first. On success c.LockVersion reflects the new value.
	UpdateVersioned(ctx context.Context, c *models.Complaint) error

	List(ctx context.Context, f ComplaintFilter) ([]models.Complaint, int, error)
	CountAssignedInStatuses(ctx context.Context, userID string, statuses []models.Status) (int, error)

	// Scheduler scans.
	ListStaleUnderReview(ctx context.Context, before time.Time, unwarnedOnly bool) ([]models.Complaint, error)
	ListResolvedBefore(ctx context.Context, before time.Time) ([]models.Complaint, error)
	ListReopenExpiring(ctx context.Context, within time.Time) ([]models.Complaint, error)

	CountByStatuses(ctx context.Context, statuses []models.Status, inclusive bool) (int, error)
	CountResolvedSince(ctx context.Context, since time.Time) (int, error)
}

type ComplaintFilter struct {
	Query      string
	Status     string
	Category   string
	TraderID   string
	AssignedTo string
	Sort       string
	Order      string
	Limit      int
	Offset     int
}

type QueueRepository interface {
	// Create returns ErrDuplicate when an entry for the same
	// (complaint, role) pair already exists.
	Create(ctx context.Context, e *models.TaskQueueEntry) error
	Update(ctx context.Context, e *models.TaskQueueEntry) error
	GetByComplaintAndRole(ctx context.Context, complaintID string, role models.Role) (*models.TaskQueueEntry, error)
	GetLatestByComplaint(ctx context.Context, complaintID string) (*models.TaskQueueEntry, error)
	ListUnassigned(ctx context.Context, role models.Role) ([]models.TaskQueueEntry, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.TaskQueueEntry, error)
	ListByUser(ctx context.Context, userID string) ([]models.TaskQueueEntry, error)
	CountAssignedTo(ctx context.Context, userID string) (int, error)
	DeleteByComplaint(ctx context.Context, complaintID string) error
}

type UserRepository interface {
	Create(ctx context.Context, email, name string, role models.Role, passwordHash string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, string /*passwordHash*/, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListActiveByRole(ctx context.Context, role models.Role) ([]models.User, error)
	List(ctx context.Context, q string, role string, active *bool, limit, offset int) ([]models.User, int, error)
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) (*models.User, error)
}

type EscalationRepository interface {
	CreateEscalation(ctx context.Context, e *models.Escalation) error
	ListEscalations(ctx context.Context, complaintID string) ([]models.Escalation, error)

	CreateAppeal(ctx context.Context, a *models.Appeal) error
	GetAppeal(ctx context.Context, id string) (*models.Appeal, error)
	GetPendingAppeal(ctx context.Context, complaintID string) (*models.Appeal, error)
	UpdateAppeal(ctx context.Context, a *models.Appeal) error

	CreateMediation(ctx context.Context, m *models.MediationRequest) error
	GetMediation(ctx context.Context, id string) (*models.MediationRequest, error)
	GetActiveMediation(ctx context.Context, complaintID string) (*models.MediationRequest, error)
	UpdateMediation(ctx context.Context, m *models.MediationRequest) error

	CreateApprovalStage(ctx context.Context, s *models.ApprovalStage) error
	GetOpenApprovalStage(ctx context.Context, complaintID string) (*models.ApprovalStage, error)
	// RecordApproval registers one approver vote on the stage and returns the
	// updated count. ErrDuplicate when the approver already voted.
	RecordApproval(ctx context.Context, stageID, approverID string) (int, error)
	CloseApprovalStage(ctx context.Context, stageID string) error
}

type AuditRepository interface {
	// Record must not fail silently: audit is part of the operation contract.
	Record(ctx context.Context, actorID, action, targetType, targetID, details string) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AuditLog, error)
}

// Store bundles the repositories over a single database handle. WithTx runs
// fn against a transaction-bound Store; every workflow operation that touches
// both the complaint and its queue entry goes through it so the two cannot
// fall out of sync.
type Store interface {
	Complaints() ComplaintRepository
	Queue() QueueRepository
	Users() UserRepository
	Escalations() EscalationRepository
	Audit() AuditRepository
	WithTx(ctx context.Context, fn func(Store) error) error
}
