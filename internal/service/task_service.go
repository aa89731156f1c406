package service

import (
	"context"
	"fmt"
	"time"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/notify"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"

	"github.com/rs/zerolog"
)

// TaskService drives the task_status lifecycle of a complaint. Every
// operation re-reads the complaint, validates state and actor, mutates,
// bumps lock_version and writes its audit entry inside one transaction;
// notifications go out only after the transaction commits.
type TaskService struct {
	store     repository.Store
	queue     *QueueService
	notifier  notify.Dispatcher
	log       zerolog.Logger
	approvals int // default required approvals per stage
}

func NewTaskService(store repository.Store, queue *QueueService, notifier notify.Dispatcher, defaultApprovals int, log zerolog.Logger) *TaskService {
	if defaultApprovals < 1 {
		defaultApprovals = 1
	}
	return &TaskService{store: store, queue: queue, notifier: notifier, approvals: defaultApprovals, log: log}
}

func getComplaint(ctx context.Context, s repository.Store, id string) (*models.Complaint, error) {
	c, err := s.Complaints().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("complaint %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// AcceptTask takes ownership of an assigned (or still unassigned, in-queue)
// complaint. Only the current assignee may accept; a queued complaint with no
// assignee may be accepted by anyone in the role.
func (t *TaskService) AcceptTask(ctx context.Context, complaintID, actorID string) (*models.Complaint, error) {
	var c *models.Complaint
	err := t.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.TaskStatus != models.TaskAssigned && c.TaskStatus != models.TaskInQueue {
			return fmt.Errorf("accept from %s: %w", c.TaskStatus, ErrInvalidState)
		}
		if c.AssignedTo != nil && *c.AssignedTo != actorID {
			return fmt.Errorf("complaint assigned to another member: %w", ErrForbidden)
		}

		entry, err := s.Queue().GetLatestByComplaint(ctx, complaintID)
		if err != nil {
			return err
		}
		// An unassigned queued complaint is up for grabs, but only within
		// the role it was queued for.
		if c.AssignedTo == nil && entry != nil {
			actor, err := s.Users().GetByID(ctx, actorID)
			if err != nil {
				return err
			}
			if actor == nil || actor.Role != entry.AssignedRole {
				return fmt.Errorf("queued for %s: %w", entry.AssignedRole, ErrForbidden)
			}
		}

		now := time.Now()
		c.TaskStatus = models.TaskAccepted
		c.AssignedTo = &actorID
		c.AcceptedAt = &now
		if c.Status == models.StatusSubmitted {
			c.Status = models.StatusUnderReview
		}
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}

		// Bind the queue entry to the acceptor so both records agree.
		if entry != nil && (entry.AssignedUser == nil || *entry.AssignedUser != actorID) {
			entry.AssignedUser = &actorID
			entry.AssignedAt = &now
			if err := s.Queue().Update(ctx, entry); err != nil {
				return err
			}
		}

		return s.Audit().Record(ctx, actorID, models.ActionTaskAccept, models.TargetComplaint, complaintID, "task accepted")
	})
	if err != nil {
		return nil, err
	}
	t.notifier.NotifyTaskEvent(c.TraderID, c, "accepted")
	return c, nil
}

// RejectTask sends the complaint back to the queue and frees the rejecting
// member's slot, then rebalances the role so the freed capacity is used.
func (t *TaskService) RejectTask(ctx context.Context, complaintID, actorID, reason string) (*models.Complaint, error) {
	var c *models.Complaint
	var role models.Role

	err := t.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.TaskStatus != models.TaskAssigned {
			return fmt.Errorf("reject from %s: %w", c.TaskStatus, ErrInvalidState)
		}
		if c.AssignedTo == nil || *c.AssignedTo != actorID {
			return fmt.Errorf("only the assignee may reject: %w", ErrForbidden)
		}

		c.TaskStatus = models.TaskInQueue
		c.AssignedTo = nil
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}

		entry, err := s.Queue().GetLatestByComplaint(ctx, complaintID)
		if err != nil {
			return err
		}
		if entry != nil {
			role = entry.AssignedRole
			entry.AssignedUser = nil
			entry.WorkloadScore = 0
			entry.AssignedAt = nil
			if err := s.Queue().Update(ctx, entry); err != nil {
				return err
			}
		}

		return s.Audit().Record(ctx, actorID, models.ActionTaskReject, models.TargetComplaint, complaintID, reason)
	})
	if err != nil {
		return nil, err
	}

	// Capacity freed up; let the queue try to place waiting complaints.
	if role != "" {
		if _, err := t.queue.Rebalance(ctx, role, actorID); err != nil {
			t.log.Warn().Err(err).Str("role", string(role)).Msg("rebalance after reject failed")
		}
	}
	return c, nil
}

// StartWorking claims the complaint for exclusive work. At most one user may
// hold the claim; a second caller gets a conflict, never a silent overwrite.
func (t *TaskService) StartWorking(ctx context.Context, complaintID, actorID string) (*models.Complaint, error) {
	var c *models.Complaint
	err := t.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.TaskStatus != models.TaskAccepted {
			return fmt.Errorf("start from %s: %w", c.TaskStatus, ErrInvalidState)
		}
		if c.AssignedTo == nil || *c.AssignedTo != actorID {
			return fmt.Errorf("only the assignee may start: %w", ErrForbidden)
		}
		if c.ClaimedBy != nil && *c.ClaimedBy != actorID {
			return fmt.Errorf("claimed by another user: %w", ErrConflict)
		}

		c.TaskStatus = models.TaskInProgress
		c.ClaimedBy = &actorID
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}
		return s.Audit().Record(ctx, actorID, models.ActionTaskStart, models.TargetComplaint, complaintID, "work started")
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ReleaseClaim gives up the exclusive claim without losing the assignment.
func (t *TaskService) ReleaseClaim(ctx context.Context, complaintID, actorID string) (*models.Complaint, error) {
	var c *models.Complaint
	err := t.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.ClaimedBy == nil {
			return fmt.Errorf("no active claim: %w", ErrInvalidState)
		}
		if *c.ClaimedBy != actorID {
			return fmt.Errorf("claim held by another user: %w", ErrForbidden)
		}

		c.ClaimedBy = nil
		c.TaskStatus = models.TaskAccepted
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}
		return s.Audit().Record(ctx, actorID, models.ActionTaskRelease, models.TargetComplaint, complaintID, "claim released")
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SubmitForApproval moves the task to pending_approval and opens an approval
// stage with the configured quorum. The claim is released; the work is done.
func (t *TaskService) SubmitForApproval(ctx context.Context, complaintID, actorID string, requiredApprovals int) (*models.Complaint, error) {
	if requiredApprovals < 1 {
		requiredApprovals = t.approvals
	}
	var c *models.Complaint
	err := t.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.TaskStatus != models.TaskInProgress {
			return fmt.Errorf("submit from %s: %w", c.TaskStatus, ErrInvalidState)
		}
		if c.AssignedTo == nil || *c.AssignedTo != actorID {
			return fmt.Errorf("only the assignee may submit: %w", ErrForbidden)
		}

		c.TaskStatus = models.TaskPendingApproval
		c.ClaimedBy = nil
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}

		stage := &models.ApprovalStage{ComplaintID: complaintID, RequiredApprovals: requiredApprovals}
		if err := s.Escalations().CreateApprovalStage(ctx, stage); err != nil {
			return err
		}
		return s.Audit().Record(ctx, actorID, models.ActionTaskSubmit, models.TargetComplaint, complaintID,
			fmt.Sprintf("submitted for approval (quorum %d)", requiredApprovals))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ApproveTask records one committee approval. The assignee cannot approve
// their own work, and each reviewer counts once. When the quorum is met the
// task completes and the complaint resolves, opening the reopen window.
func (t *TaskService) ApproveTask(ctx context.Context, complaintID, actorID string, reopenWindow time.Duration) (*models.Complaint, error) {
	var c *models.Complaint
	var completed bool

	err := t.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.TaskStatus != models.TaskPendingApproval {
			return fmt.Errorf("approve from %s: %w", c.TaskStatus, ErrInvalidState)
		}
		if c.AssignedTo != nil && *c.AssignedTo == actorID {
			return fmt.Errorf("assignee cannot approve own work: %w", ErrForbidden)
		}
		actor, err := s.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if actor == nil || actor.Role == models.RoleTrader {
			return fmt.Errorf("committee role required: %w", ErrForbidden)
		}

		stage, err := s.Escalations().GetOpenApprovalStage(ctx, complaintID)
		if err != nil {
			return err
		}
		if stage == nil {
			return fmt.Errorf("no open approval stage: %w", ErrInvalidState)
		}

		count, err := s.Escalations().RecordApproval(ctx, stage.ID, actorID)
		if err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("already approved by this reviewer: %w", ErrConflict)
			}
			return err
		}

		if count >= stage.RequiredApprovals {
			completed = true
			now := time.Now()
			until := now.Add(reopenWindow)
			c.TaskStatus = models.TaskCompleted
			c.Status = models.StatusResolved
			// Resolution ends whatever escalation process routed the
			// complaint here; a resolved complaint owns no active process.
			c.EscalationState = models.EscalationNone
			c.ResolvedAt = &now
			c.CanReopenUntil = &until
			c.LastAssignedTCID = c.AssignedTo
			c.ClaimedBy = nil
			if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
				return asServiceErr(err)
			}
			if err := s.Escalations().CloseApprovalStage(ctx, stage.ID); err != nil {
				return err
			}
			return s.Audit().Record(ctx, actorID, models.ActionTaskComplete, models.TargetComplaint, complaintID,
				fmt.Sprintf("quorum met (%d/%d), complaint resolved", count, stage.RequiredApprovals))
		}
		return s.Audit().Record(ctx, actorID, models.ActionTaskApprove, models.TargetComplaint, complaintID,
			fmt.Sprintf("approval %d/%d", count, stage.RequiredApprovals))
	})
	if err != nil {
		return nil, err
	}
	if completed {
		t.notifier.NotifyTaskEvent(c.TraderID, c, "resolved")
	}
	return c, nil
}

// RejectApproval sends the work back to the assignee and closes the stage.
func (t *TaskService) RejectApproval(ctx context.Context, complaintID, actorID, reason string) (*models.Complaint, error) {
	var c *models.Complaint
	err := t.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.TaskStatus != models.TaskPendingApproval {
			return fmt.Errorf("reject approval from %s: %w", c.TaskStatus, ErrInvalidState)
		}
		if c.AssignedTo != nil && *c.AssignedTo == actorID {
			return fmt.Errorf("assignee cannot review own work: %w", ErrForbidden)
		}
		actor, err := s.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if actor == nil || actor.Role == models.RoleTrader {
			return fmt.Errorf("committee role required: %w", ErrForbidden)
		}

		stage, err := s.Escalations().GetOpenApprovalStage(ctx, complaintID)
		if err != nil {
			return err
		}
		if stage != nil {
			if err := s.Escalations().CloseApprovalStage(ctx, stage.ID); err != nil {
				return err
			}
		}

		c.TaskStatus = models.TaskAccepted
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}
		return s.Audit().Record(ctx, actorID, models.ActionTaskApprovalReject, models.TargetComplaint, complaintID, reason)
	})
	if err != nil {
		return nil, err
	}
	if c.AssignedTo != nil {
		t.notifier.NotifyTaskEvent(*c.AssignedTo, c, "approval rejected")
	}
	return c, nil
}
