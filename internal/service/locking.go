package service

import (
	"context"
	"fmt"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"
)

// ComplaintEditor is the optimistic-concurrency edit path for complaint
// fields. It prevents lost field updates between concurrent editors; the
// exclusive claim (ClaimedBy) separately prevents two people doing the work
// at once. Both can apply to the same complaint.
type ComplaintEditor struct {
	store repository.Store
}

func NewComplaintEditor(store repository.Store) *ComplaintEditor {
	return &ComplaintEditor{store: store}
}

// UpdateWithLock applies the sparse patch if and only if the caller's
// expected lock_version still matches. On success the version advances by
// exactly one; a stale version mutates nothing and returns Conflict so the
// caller refetches and retries.
func (e *ComplaintEditor) UpdateWithLock(ctx context.Context, complaintID string, expectedVersion int, patch models.ComplaintPatch, actorID string) (*models.Complaint, error) {
	var c *models.Complaint
	err := e.store.WithTx(ctx, func(s repository.Store) error {
		var err error
		c, err = getComplaint(ctx, s, complaintID)
		if err != nil {
			return err
		}
		if c.LockVersion != expectedVersion {
			return fmt.Errorf("expected version %d, have %d: %w", expectedVersion, c.LockVersion, ErrConflict)
		}

		if patch.Title != nil {
			c.Title = *patch.Title
		}
		if patch.Description != nil {
			c.Description = *patch.Description
		}
		if patch.Category != nil {
			c.Category = *patch.Category
		}
		if patch.Priority != nil {
			c.Priority = *patch.Priority
		}
		if patch.Status != nil {
			c.Status = *patch.Status
		}
		if patch.AssignedTo != nil {
			c.AssignedTo = patch.AssignedTo
		}

		if err := s.Complaints().UpdateVersioned(ctx, c); err != nil {
			// Integrity violations during commit count as conflicts, not
			// fatal errors; the transaction rolls back cleanly.
			return asServiceErr(err)
		}
		return s.Audit().Record(ctx, actorID, models.ActionComplaintUpdate, models.TargetComplaint, complaintID,
			fmt.Sprintf("patched at version %d", expectedVersion))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
