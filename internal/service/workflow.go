package service

import (
	"context"
	"fmt"
	"time"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/config"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/notify"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"

	"github.com/rs/zerolog"
)

// WorkflowService holds the housekeeping jobs the scheduler runs outside any
// request context. Every transition it makes is attributed to the configured
// system actor so the audit trail stays complete.
type WorkflowService struct {
	store       repository.Store
	queue       *QueueService
	notifier    notify.Dispatcher
	settings    config.Settings
	systemActor string
	log         zerolog.Logger
}

func NewWorkflowService(store repository.Store, queue *QueueService, notifier notify.Dispatcher, settings config.Settings, systemActor string, log zerolog.Logger) *WorkflowService {
	return &WorkflowService{
		store:       store,
		queue:       queue,
		notifier:    notifier,
		settings:    settings,
		systemActor: systemActor,
		log:         log,
	}
}

// CheckSLA escalates every under_review complaint with no activity inside the
// SLA threshold to the Higher Committee with an sla_violation record.
// Returns the number of complaints escalated.
func (w *WorkflowService) CheckSLA(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-w.settings.SLAThreshold)
	stale, err := w.store.Complaints().ListStaleUnderReview(ctx, cutoff, false)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for i := range stale {
		id := stale[i].ID
		var c *models.Complaint
		var assignee *models.User

		err := w.store.WithTx(ctx, func(s repository.Store) error {
			var err error
			c, err = getComplaint(ctx, s, id)
			if err != nil {
				return err
			}
			// Re-check inside the transaction; a member may have acted since
			// the scan.
			if c.Status != models.StatusUnderReview || c.UpdatedAt.After(cutoff) {
				return nil
			}

			if err := s.Escalations().CreateEscalation(ctx, &models.Escalation{
				ComplaintID: id,
				Type:        models.EscalationTypeSLAViolation,
				TargetRole:  models.RoleHigherCommittee,
				Reason:      fmt.Sprintf("no activity within %s", w.settings.SLAThreshold),
				EscalatedBy: w.systemActor,
			}); err != nil {
				return err
			}

			c.Status = models.StatusEscalated
			c.ClaimedBy = nil
			if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
				return asServiceErr(err)
			}

			_, assignee, c, err = w.queue.addToQueueTx(ctx, s, id, models.RoleHigherCommittee, w.systemActor)
			if err != nil {
				return err
			}
			escalated++
			return s.Audit().Record(ctx, w.systemActor, models.ActionSLAEscalate, models.TargetComplaint, id,
				"SLA threshold exceeded")
		})
		if err != nil {
			w.log.Error().Err(err).Str("complaint", id).Msg("sla escalation failed")
			continue
		}
		if assignee != nil {
			w.notifier.NotifyEscalation(assignee.ID, c, "SLA violation")
		}
	}
	return escalated, nil
}

// SLAWarnings notifies assignees of complaints approaching the SLA threshold
// so they can act before automatic escalation. Each complaint is warned once.
func (w *WorkflowService) SLAWarnings(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-w.settings.SLAWarning)
	stale, err := w.store.Complaints().ListStaleUnderReview(ctx, cutoff, true)
	if err != nil {
		return 0, err
	}

	warned := 0
	for i := range stale {
		id := stale[i].ID
		var c *models.Complaint

		err := w.store.WithTx(ctx, func(s repository.Store) error {
			var err error
			c, err = getComplaint(ctx, s, id)
			if err != nil {
				return err
			}
			if c.SLAWarningSent || c.Status != models.StatusUnderReview {
				return nil
			}
			c.SLAWarningSent = true
			if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
				return asServiceErr(err)
			}
			warned++
			return s.Audit().Record(ctx, w.systemActor, models.ActionSLAWarning, models.TargetComplaint, id,
				"approaching SLA threshold")
		})
		if err != nil {
			w.log.Error().Err(err).Str("complaint", id).Msg("sla warning failed")
			continue
		}
		if c.AssignedTo != nil {
			w.notifier.NotifyTaskEvent(*c.AssignedTo, c, "sla_warning")
		}
	}
	return warned, nil
}

// AutoClose closes complaints resolved longer ago than the auto-close window
// and restarts the reopen window from the closing moment.
func (w *WorkflowService) AutoClose(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-w.settings.AutoCloseAfter)
	resolved, err := w.store.Complaints().ListResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range resolved {
		id := resolved[i].ID
		var c *models.Complaint

		err := w.store.WithTx(ctx, func(s repository.Store) error {
			var err error
			c, err = getComplaint(ctx, s, id)
			if err != nil {
				return err
			}
			if c.Status != models.StatusResolved || c.ClosedAt != nil {
				return nil
			}
			now := time.Now()
			until := now.Add(w.settings.ReopenWindow)
			c.ClosedAt = &now
			c.CanReopenUntil = &until
			if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
				return asServiceErr(err)
			}
			closed++
			return s.Audit().Record(ctx, w.systemActor, models.ActionAutoClose, models.TargetComplaint, id,
				"auto-closed after resolution window")
		})
		if err != nil {
			w.log.Error().Err(err).Str("complaint", id).Msg("auto-close failed")
			continue
		}
		w.notifier.NotifyTaskEvent(c.TraderID, c, "closed")
	}
	return closed, nil
}

// ReopenReminders tells traders their reopen window closes soon (under two
// days left). One reminder per resolution.
func (w *WorkflowService) ReopenReminders(ctx context.Context) (int, error) {
	within := time.Now().Add(48 * time.Hour)
	expiring, err := w.store.Complaints().ListReopenExpiring(ctx, within)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range expiring {
		id := expiring[i].ID
		var c *models.Complaint

		err := w.store.WithTx(ctx, func(s repository.Store) error {
			var err error
			c, err = getComplaint(ctx, s, id)
			if err != nil {
				return err
			}
			if c.ReopenReminderSent || c.CanReopenUntil == nil {
				return nil
			}
			c.ReopenReminderSent = true
			if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
				return asServiceErr(err)
			}
			sent++
			return nil
		})
		if err != nil {
			w.log.Error().Err(err).Str("complaint", id).Msg("reopen reminder failed")
			continue
		}
		w.notifier.NotifyTaskEvent(c.TraderID, c, "reopen_window_closing")
	}
	return sent, nil
}
