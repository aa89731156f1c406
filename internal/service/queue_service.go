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

// QueueService routes complaints to committee roles and balances them across
// active members. A role with zero active members is a normal transient
// condition: the complaint stays queued and the gap is logged, not raised.
type QueueService struct {
	store    repository.Store
	notifier notify.Dispatcher
	log      zerolog.Logger
}

func NewQueueService(store repository.Store, notifier notify.Dispatcher, log zerolog.Logger) *QueueService {
	return &QueueService{store: store, notifier: notifier, log: log}
}

// AddToQueue routes the complaint to the role, assigning it immediately when
// an eligible member exists. Idempotent per (complaint, role): an existing
// entry is returned as-is. The complaint row is kept in sync in the same
// transaction.
func (q *QueueService) AddToQueue(ctx context.Context, complaintID string, role models.Role, actorID string) (*models.TaskQueueEntry, error) {
	var entry *models.TaskQueueEntry
	var assignee *models.User
	var complaint *models.Complaint

	err := q.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		entry, assignee, complaint, err = q.addToQueueTx(ctx, s, complaintID, role, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if assignee != nil {
		q.notifier.NotifyAssignment(assignee.ID, complaint, actorID)
	}
	return entry, nil
}

// addToQueueTx is the transaction-bound body, shared with the escalation and
// reopen flows so their routing lands in the caller's transaction.
func (q *QueueService) addToQueueTx(ctx context.Context, s repository.Store, complaintID string, role models.Role, actorID string) (*models.TaskQueueEntry, *models.User, *models.Complaint, error) {
	c, err := s.Complaints().Get(ctx, complaintID)
	if err != nil {
		return nil, nil, nil, err
	}
	if c == nil {
		return nil, nil, nil, fmt.Errorf("complaint %s: %w", complaintID, ErrNotFound)
	}

	if existing, err := s.Queue().GetByComplaintAndRole(ctx, complaintID, role); err != nil {
		return nil, nil, nil, err
	} else if existing != nil {
		// Idempotent per (complaint, role); re-sync the complaint when the
		// surviving entry already names an assignee (re-escalation case).
		if existing.AssignedUser != nil &&
			(c.AssignedTo == nil || *c.AssignedTo != *existing.AssignedUser) {
			c.AssignedTo = existing.AssignedUser
			c.TaskStatus = models.TaskAssigned
			if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
				return nil, nil, nil, asServiceErr(err)
			}
		}
		return existing, nil, c, nil
	}

	wl := NewWorkloadCalculator(s)
	candidate, score, err := wl.BestCandidate(ctx, role)
	if err != nil {
		return nil, nil, nil, err
	}

	entry := &models.TaskQueueEntry{ComplaintID: complaintID, AssignedRole: role}
	if candidate != nil {
		now := time.Now()
		entry.AssignedUser = &candidate.ID
		entry.WorkloadScore = score
		entry.AssignedAt = &now
	}

	if err := s.Queue().Create(ctx, entry); err != nil {
		// A concurrent caller won the race: the unique constraint on
		// (complaint, role) means the entry now exists, so fetch it.
		if isDuplicate(err) {
			existing, gerr := s.Queue().GetByComplaintAndRole(ctx, complaintID, role)
			if gerr != nil {
				return nil, nil, nil, gerr
			}
			return existing, nil, c, nil
		}
		return nil, nil, nil, err
	}

	if candidate != nil {
		c.AssignedTo = &candidate.ID
		c.TaskStatus = models.TaskAssigned
	} else {
		c.AssignedTo = nil
		c.TaskStatus = models.TaskInQueue
		q.log.Info().
			Str("complaint", complaintID).
			Str("role", string(role)).
			Msg("no eligible assignee, complaint left in queue")
	}
	if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
		return nil, nil, nil, asServiceErr(err)
	}

	detail := "queued for " + string(role)
	if candidate != nil {
		detail = fmt.Sprintf("assigned to %s (score %.1f)", candidate.ID, score)
	}
	if err := s.Audit().Record(ctx, actorID, models.ActionQueueAdd, models.TargetComplaint, complaintID, detail); err != nil {
		return nil, nil, nil, err
	}
	return entry, candidate, c, nil
}

// Rebalance fills unassigned entries of the role now that capacity may have
// changed. Already-assigned entries are never touched (no work stealing).
func (q *QueueService) Rebalance(ctx context.Context, role models.Role, actorID string) (int, error) {
	type pending struct {
		userID    string
		complaint *models.Complaint
	}
	var assigned []pending

	err := q.store.WithTx(ctx, func(s repository.Store) error {
		entries, err := s.Queue().ListUnassigned(ctx, role)
		if err != nil {
			return err
		}
		wl := NewWorkloadCalculator(s)
		for i := range entries {
			e := &entries[i]
			candidate, score, err := wl.BestCandidate(ctx, role)
			if err != nil {
				return err
			}
			if candidate == nil {
				q.log.Info().Str("role", string(role)).Msg("rebalance: no eligible assignee")
				break
			}

			now := time.Now()
			e.AssignedUser = &candidate.ID
			e.WorkloadScore = score
			e.AssignedAt = &now
			if err := s.Queue().Update(ctx, e); err != nil {
				return err
			}

			c, err := s.Complaints().Get(ctx, e.ComplaintID)
			if err != nil {
				return err
			}
			if c == nil {
				continue
			}
			c.AssignedTo = &candidate.ID
			c.TaskStatus = models.TaskAssigned
			if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
				return asServiceErr(err)
			}
			if err := s.Audit().Record(ctx, actorID, models.ActionQueueRebalance, models.TargetComplaint, c.ID,
				fmt.Sprintf("assigned to %s (score %.1f)", candidate.ID, score)); err != nil {
				return err
			}
			assigned = append(assigned, pending{userID: candidate.ID, complaint: c})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, p := range assigned {
		q.notifier.NotifyAssignment(p.userID, p.complaint, actorID)
	}
	return len(assigned), nil
}

// reassignTx re-runs candidate selection for the complaint's latest queue
// entry, excluding the given user. When nobody else is eligible the entry's
// assignee is cleared and nil is returned; the caller decides the fallback.
func (q *QueueService) reassignTx(ctx context.Context, s repository.Store, complaintID, excluding string) (*models.User, *models.TaskQueueEntry, error) {
	entry, err := s.Queue().GetLatestByComplaint(ctx, complaintID)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, fmt.Errorf("queue entry for complaint %s: %w", complaintID, ErrNotFound)
	}

	wl := NewWorkloadCalculator(s)
	candidate, score, err := wl.BestCandidate(ctx, entry.AssignedRole, excluding)
	if err != nil {
		return nil, nil, err
	}

	if candidate == nil {
		entry.AssignedUser = nil
		entry.WorkloadScore = 0
		entry.AssignedAt = nil
		if err := s.Queue().Update(ctx, entry); err != nil {
			return nil, nil, err
		}
		return nil, entry, nil
	}

	now := time.Now()
	entry.AssignedUser = &candidate.ID
	entry.WorkloadScore = score
	entry.AssignedAt = &now
	if err := s.Queue().Update(ctx, entry); err != nil {
		return nil, nil, err
	}
	return candidate, entry, nil
}

// QueueForUser lists the entries currently assigned to the user.
func (q *QueueService) QueueForUser(ctx context.Context, userID string) ([]models.TaskQueueEntry, error) {
	return q.store.Queue().ListByUser(ctx, userID)
}

// QueueForRole lists all entries for the role ordered by queue position.
func (q *QueueService) QueueForRole(ctx context.Context, role models.Role) ([]models.TaskQueueEntry, error) {
	return q.store.Queue().ListByRole(ctx, role)
}
