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

// EscalationService owns everything that takes a complaint out of the normal
// flow: manual escalation to the Higher Committee, trader appeals, mediation,
// lateral reassignment, and the post-resolution reopen window.
type EscalationService struct {
	store        repository.Store
	queue        *QueueService
	notifier     notify.Dispatcher
	log          zerolog.Logger
	reopenWindow time.Duration
}

func NewEscalationService(store repository.Store, queue *QueueService, notifier notify.Dispatcher, reopenWindow time.Duration, log zerolog.Logger) *EscalationService {
	return &EscalationService{store: store, queue: queue, notifier: notifier, reopenWindow: reopenWindow, log: log}
}

// Escalate raises the complaint to the Higher Committee. Only the current
// assignee may escalate, and only once.
func (e *EscalationService) Escalate(ctx context.Context, complaintID, actorID, reason string) (*models.Complaint, error) {
	var c *models.Complaint
	var newAssignee *models.User

	err := e.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.AssignedTo == nil || *c.AssignedTo != actorID {
			return fmt.Errorf("only the assignee may escalate: %w", ErrForbidden)
		}
		if c.Status == models.StatusEscalated {
			return fmt.Errorf("already escalated: %w", ErrInvalidState)
		}
		if c.EscalationState != models.EscalationNone {
			return fmt.Errorf("escalation process already active (%s): %w", c.EscalationState, ErrInvalidState)
		}

		if err := s.Escalations().CreateEscalation(ctx, &models.Escalation{
			ComplaintID: complaintID,
			Type:        models.EscalationTypeManual,
			TargetRole:  models.RoleHigherCommittee,
			Reason:      reason,
			EscalatedBy: actorID,
		}); err != nil {
			return err
		}

		c.Status = models.StatusEscalated
		c.EscalationState = models.EscalationTCManual
		c.ClaimedBy = nil
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}

		// Route to HC in the same transaction; the queue add re-reads the
		// row we just wrote and advances task_status/assignee itself.
		_, newAssignee, c, err = e.queue.addToQueueTx(ctx, s, complaintID, models.RoleHigherCommittee, actorID)
		if err != nil {
			return err
		}

		return s.Audit().Record(ctx, actorID, models.ActionEscalate, models.TargetComplaint, complaintID, reason)
	})
	if err != nil {
		return nil, err
	}
	if newAssignee != nil {
		e.notifier.NotifyEscalation(newAssignee.ID, c, reason)
	}
	return c, nil
}

// FileAppeal lets the owning trader contest a committee decision. One pending
// appeal per complaint; a second attempt conflicts.
func (e *EscalationService) FileAppeal(ctx context.Context, complaintID, traderID, reason string) (*models.Appeal, error) {
	var appeal *models.Appeal
	var c *models.Complaint
	var newAssignee *models.User

	err := e.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.TraderID != traderID {
			return fmt.Errorf("only the owning trader may appeal: %w", ErrForbidden)
		}
		if existing, err := s.Escalations().GetPendingAppeal(ctx, complaintID); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("pending appeal already exists: %w", ErrConflict)
		}
		if c.EscalationState != models.EscalationNone {
			return fmt.Errorf("escalation process already active (%s): %w", c.EscalationState, ErrInvalidState)
		}

		appeal = &models.Appeal{
			ComplaintID: complaintID,
			TraderID:    traderID,
			Reason:      reason,
			Status:      models.AppealPending,
		}
		if err := s.Escalations().CreateAppeal(ctx, appeal); err != nil {
			return err
		}
		if err := s.Escalations().CreateEscalation(ctx, &models.Escalation{
			ComplaintID: complaintID,
			Type:        models.EscalationTypeTraderAppeal,
			TargetRole:  models.RoleHigherCommittee,
			Reason:      reason,
			EscalatedBy: traderID,
		}); err != nil {
			return err
		}

		c.Status = models.StatusEscalated
		c.EscalationState = models.EscalationTraderAppeal
		c.ClaimedBy = nil
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}

		_, newAssignee, c, err = e.queue.addToQueueTx(ctx, s, complaintID, models.RoleHigherCommittee, traderID)
		if err != nil {
			return err
		}
		return s.Audit().Record(ctx, traderID, models.ActionAppealFile, models.TargetAppeal, appeal.ID, reason)
	})
	if err != nil {
		return nil, err
	}
	if newAssignee != nil {
		e.notifier.NotifyEscalation(newAssignee.ID, c, "trader appeal: "+reason)
	}
	return appeal, nil
}

// DecideAppeal records the Higher Committee's decision on a pending appeal
// and returns the escalation state to none. Acceptance reopens review;
// rejection leaves the complaint's domain status untouched.
func (e *EscalationService) DecideAppeal(ctx context.Context, appealID, actorID string, accept bool, notes string) (*models.Appeal, error) {
	var appeal *models.Appeal
	var c *models.Complaint

	err := e.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		appeal, err = s.Escalations().GetAppeal(ctx, appealID)
		if err != nil {
			return err
		}
		if appeal == nil {
			return fmt.Errorf("appeal %s: %w", appealID, ErrNotFound)
		}
		if appeal.Status != models.AppealPending {
			return fmt.Errorf("appeal already %s: %w", appeal.Status, ErrInvalidState)
		}
		if err := requireRole(ctx, s, actorID, models.RoleHigherCommittee); err != nil {
			return err
		}

		now := time.Now()
		if accept {
			appeal.Status = models.AppealAccepted
		} else {
			appeal.Status = models.AppealRejected
		}
		appeal.DecidedBy = &actorID
		appeal.DecidedAt = &now
		appeal.DecisionNotes = notes
		if err := s.Escalations().UpdateAppeal(ctx, appeal); err != nil {
			return err
		}

		c, err = getComplaint(ctx, s, appeal.ComplaintID)
		if err != nil {
			return err
		}
		c.EscalationState = models.EscalationNone
		if accept {
			c.Status = models.StatusUnderReview
		}
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}
		return s.Audit().Record(ctx, actorID, models.ActionAppealDecide, models.TargetAppeal, appealID,
			fmt.Sprintf("appeal %s: %s", appeal.Status, notes))
	})
	if err != nil {
		return nil, err
	}
	e.notifier.NotifyTaskEvent(appeal.TraderID, c, "appeal "+string(appeal.Status))
	return appeal, nil
}

// RequestMediation opens a mediation process. Unlike escalation and appeal it
// is broadcast to every active HC member rather than queued to one person.
func (e *EscalationService) RequestMediation(ctx context.Context, complaintID, actorID, reason string) (*models.MediationRequest, error) {
	var med *models.MediationRequest
	var c *models.Complaint
	var hcMembers []models.User

	err := e.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.AssignedTo == nil || *c.AssignedTo != actorID {
			return fmt.Errorf("only the assignee may request mediation: %w", ErrForbidden)
		}
		if existing, err := s.Escalations().GetActiveMediation(ctx, complaintID); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("active mediation request already exists: %w", ErrConflict)
		}
		if c.EscalationState != models.EscalationNone {
			return fmt.Errorf("escalation process already active (%s): %w", c.EscalationState, ErrInvalidState)
		}

		med = &models.MediationRequest{
			ComplaintID: complaintID,
			RequestedBy: actorID,
			Reason:      reason,
			Status:      models.MediationPending,
		}
		if err := s.Escalations().CreateMediation(ctx, med); err != nil {
			return err
		}
		if err := s.Escalations().CreateEscalation(ctx, &models.Escalation{
			ComplaintID: complaintID,
			Type:        models.EscalationTypeMediation,
			TargetRole:  models.RoleHigherCommittee,
			Reason:      reason,
			EscalatedBy: actorID,
		}); err != nil {
			return err
		}

		c.Status = models.StatusMediationPending
		c.EscalationState = models.EscalationMediation
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}

		hcMembers, err = s.Users().ListActiveByRole(ctx, models.RoleHigherCommittee)
		if err != nil {
			return err
		}
		return s.Audit().Record(ctx, actorID, models.ActionMediationOpen, models.TargetMediation, med.ID, reason)
	})
	if err != nil {
		return nil, err
	}
	for _, m := range hcMembers {
		e.notifier.NotifyEscalation(m.ID, c, "mediation requested: "+reason)
	}
	return med, nil
}

// UpdateMediation advances the mediation sub-state machine (HC only) and
// keeps the complaint's domain status in step: acceptance starts mediation,
// resolution resolves the complaint, rejection/cancellation return it to
// review. Any terminal decision clears the escalation state.
func (e *EscalationService) UpdateMediation(ctx context.Context, mediationID, actorID string, next models.MediationStatus, notes string) (*models.MediationRequest, error) {
	var med *models.MediationRequest
	var c *models.Complaint

	err := e.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		med, err = s.Escalations().GetMediation(ctx, mediationID)
		if err != nil {
			return err
		}
		if med == nil {
			return fmt.Errorf("mediation request %s: %w", mediationID, ErrNotFound)
		}
		if err := requireRole(ctx, s, actorID, models.RoleHigherCommittee); err != nil {
			return err
		}
		if !med.Status.CanTransition(next) {
			return fmt.Errorf("mediation %s -> %s: %w", med.Status, next, ErrInvalidState)
		}

		now := time.Now()
		med.Status = next
		med.UpdatedBy = &actorID
		if next.Terminal() {
			med.ResolvedAt = &now
		}
		if err := s.Escalations().UpdateMediation(ctx, med); err != nil {
			return err
		}

		c, err = getComplaint(ctx, s, med.ComplaintID)
		if err != nil {
			return err
		}
		switch next {
		case models.MediationAccepted:
			c.Status = models.StatusMediationInProgress
		case models.MediationInProgress:
			// no domain-status change; work proceeds under mediation
		case models.MediationResolved:
			until := now.Add(e.reopenWindow)
			c.Status = models.StatusResolved
			c.TaskStatus = models.TaskCompleted
			c.EscalationState = models.EscalationNone
			c.ResolvedAt = &now
			c.CanReopenUntil = &until
			c.LastAssignedTCID = c.AssignedTo
			c.ClaimedBy = nil
		case models.MediationRejected, models.MediationCancelled:
			c.Status = models.StatusUnderReview
			c.EscalationState = models.EscalationNone
		}
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}
		return s.Audit().Record(ctx, actorID, models.ActionMediationUpdate, models.TargetMediation, mediationID,
			fmt.Sprintf("mediation %s: %s", next, notes))
	})
	if err != nil {
		return nil, err
	}
	e.notifier.NotifyTaskEvent(c.TraderID, c, "mediation "+string(med.Status))
	return med, nil
}

// ReassignTo hands the complaint from the current assignee to a specific
// colleague. A lateral handoff, not an escalation, but still logged as an
// escalation record for the audit trail.
func (e *EscalationService) ReassignTo(ctx context.Context, complaintID, actorID, targetUserID, reason string) (*models.Complaint, error) {
	var c *models.Complaint
	err := e.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.AssignedTo == nil || *c.AssignedTo != actorID {
			return fmt.Errorf("only the assignee may reassign: %w", ErrForbidden)
		}

		target, err := s.Users().GetByID(ctx, targetUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("target user %s: %w", targetUserID, ErrNotFound)
		}
		actor, err := s.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if actor == nil || !target.Active || target.Role != actor.Role {
			return fmt.Errorf("target must be an active member of the same committee: %w", ErrInvalidState)
		}

		now := time.Now()
		if entry, err := s.Queue().GetLatestByComplaint(ctx, complaintID); err != nil {
			return err
		} else if entry != nil {
			wl := NewWorkloadCalculator(s)
			score, err := wl.Score(ctx, targetUserID)
			if err != nil {
				return err
			}
			entry.AssignedUser = &targetUserID
			entry.WorkloadScore = score
			entry.AssignedAt = &now
			if err := s.Queue().Update(ctx, entry); err != nil {
				return err
			}
		}

		c.AssignedTo = &targetUserID
		c.TaskStatus = models.TaskAssigned
		c.ClaimedBy = nil
		c.AcceptedAt = nil
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}

		if err := s.Escalations().CreateEscalation(ctx, &models.Escalation{
			ComplaintID: complaintID,
			Type:        models.EscalationTypeManual,
			TargetRole:  models.RoleTechnicalCommittee,
			Reason:      reason,
			EscalatedBy: actorID,
		}); err != nil {
			return err
		}
		return s.Audit().Record(ctx, actorID, models.ActionReassign, models.TargetComplaint, complaintID,
			"reassigned to "+targetUserID+": "+reason)
	})
	if err != nil {
		return nil, err
	}
	if c.AssignedTo != nil {
		e.notifier.NotifyAssignment(*c.AssignedTo, c, actorID)
	}
	return c, nil
}

// ReassignAuto asks the queue for the least-loaded alternative to the current
// assignee. No alternative is not a failure: the complaint returns to the
// queue and waits.
func (e *EscalationService) ReassignAuto(ctx context.Context, complaintID, actorID, reason string) (*models.Complaint, error) {
	var c *models.Complaint
	var newAssignee *models.User

	err := e.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.AssignedTo == nil || *c.AssignedTo != actorID {
			return fmt.Errorf("only the assignee may reassign: %w", ErrForbidden)
		}

		newAssignee, _, err = e.queue.reassignTx(ctx, s, complaintID, actorID)
		if err != nil {
			return err
		}

		if newAssignee != nil {
			c.AssignedTo = &newAssignee.ID
			c.TaskStatus = models.TaskAssigned
		} else {
			c.AssignedTo = nil
			c.TaskStatus = models.TaskInQueue
			e.log.Info().Str("complaint", complaintID).Msg("auto-reassign: no alternate member, complaint queued")
		}
		c.ClaimedBy = nil
		c.AcceptedAt = nil
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}

		if err := s.Escalations().CreateEscalation(ctx, &models.Escalation{
			ComplaintID: complaintID,
			Type:        models.EscalationTypeManual,
			TargetRole:  models.RoleTechnicalCommittee,
			Reason:      reason,
			EscalatedBy: actorID,
		}); err != nil {
			return err
		}
		return s.Audit().Record(ctx, actorID, models.ActionReassign, models.TargetComplaint, complaintID, reason)
	})
	if err != nil {
		return nil, err
	}
	if newAssignee != nil {
		e.notifier.NotifyAssignment(newAssignee.ID, c, actorID)
	}
	return c, nil
}

// Reopen re-enters a resolved or rejected complaint into review within the
// reopen window. The previous resolver is avoided when any alternate exists;
// falling back to the same resolver is recorded under a distinct audit action
// so "no alternate was available" is visible in the trail.
func (e *EscalationService) Reopen(ctx context.Context, complaintID, traderID, reason string) (*models.Complaint, error) {
	var c *models.Complaint
	var newAssignee *models.User

	err := e.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.TraderID != traderID {
			return fmt.Errorf("only the owning trader may reopen: %w", ErrForbidden)
		}
		if c.Status != models.StatusResolved && c.Status != models.StatusRejected {
			return fmt.Errorf("reopen from %s: %w", c.Status, ErrInvalidState)
		}
		if c.CanReopenUntil == nil || time.Now().After(*c.CanReopenUntil) {
			return fmt.Errorf("reopen window expired: %w", ErrInvalidState)
		}

		action := models.ActionReopen
		wl := NewWorkloadCalculator(s)
		entry, err := s.Queue().GetByComplaintAndRole(ctx, complaintID, models.RoleTechnicalCommittee)
		if err != nil {
			return err
		}

		exclude := []string{}
		if c.LastAssignedTCID != nil {
			exclude = append(exclude, *c.LastAssignedTCID)
		}
		candidate, score, err := wl.BestCandidate(ctx, models.RoleTechnicalCommittee, exclude...)
		if err != nil {
			return err
		}
		if candidate == nil && c.LastAssignedTCID != nil {
			// Nobody but the previous resolver: fall back to them if still
			// active, under the fallback audit action.
			prev, err := s.Users().GetByID(ctx, *c.LastAssignedTCID)
			if err != nil {
				return err
			}
			if prev != nil && prev.Active && prev.Role == models.RoleTechnicalCommittee {
				candidate = prev
				score, err = wl.Score(ctx, prev.ID)
				if err != nil {
					return err
				}
				action = models.ActionReopenFallback
			}
		}

		now := time.Now()
		if entry != nil {
			if candidate != nil {
				entry.AssignedUser = &candidate.ID
				entry.WorkloadScore = score
				entry.AssignedAt = &now
			} else {
				entry.AssignedUser = nil
				entry.WorkloadScore = 0
				entry.AssignedAt = nil
			}
			if err := s.Queue().Update(ctx, entry); err != nil {
				return err
			}
		} else {
			entry = &models.TaskQueueEntry{ComplaintID: complaintID, AssignedRole: models.RoleTechnicalCommittee}
			if candidate != nil {
				entry.AssignedUser = &candidate.ID
				entry.WorkloadScore = score
				entry.AssignedAt = &now
			}
			if err := s.Queue().Create(ctx, entry); err != nil {
				return err
			}
		}

		c.ReopenedCount++
		c.Status = models.StatusUnderReview
		c.EscalationState = models.EscalationNone
		c.ResolvedAt = nil
		c.CanReopenUntil = nil
		c.ClosedAt = nil
		c.ClaimedBy = nil
		c.AcceptedAt = nil
		c.ReopenReminderSent = false
		if candidate != nil {
			c.AssignedTo = &candidate.ID
			c.TaskStatus = models.TaskAssigned
		} else {
			c.AssignedTo = nil
			c.TaskStatus = models.TaskInQueue
		}
		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			return asServiceErr(err)
		}

		newAssignee = candidate
		return s.Audit().Record(ctx, traderID, action, models.TargetComplaint, complaintID, reason)
	})
	if err != nil {
		return nil, err
	}
	if newAssignee != nil {
		e.notifier.NotifyAssignment(newAssignee.ID, c, traderID)
	}
	return c, nil
}

// EscalationHistory lists every escalation record of the complaint.
func (e *EscalationService) EscalationHistory(ctx context.Context, complaintID string) ([]models.Escalation, error) {
	return e.store.Escalations().ListEscalations(ctx, complaintID)
}

func requireRole(ctx context.Context, s repository.Store, userID string, role models.Role) error {
	u, err := s.Users().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil || u.Role != role {
		return fmt.Errorf("%s role required: %w", role, ErrForbidden)
	}
	return nil
}
