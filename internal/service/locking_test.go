package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
)

func TestUpdateWithLockAppliesPatch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	editor := service.NewComplaintEditor(store)

	c := store.addComplaint(&models.Complaint{TraderID: "trader-1", Title: "old title", Priority: "low"})

	got, err := editor.UpdateWithLock(ctx, c.ID, c.LockVersion, models.ComplaintPatch{
		Title:    strPtr("new title"),
		Priority: strPtr("high"),
	}, "tc-1")
	require.NoError(t, err)
	assert.Equal(t, "new title", got.Title)
	assert.Equal(t, "high", got.Priority)
	assert.Equal(t, "", got.Category, "unpatched fields untouched")
	assert.Equal(t, c.LockVersion+1, got.LockVersion)
	assert.True(t, store.hasAudit(models.ActionComplaintUpdate))
}

func TestUpdateWithLockStaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	editor := service.NewComplaintEditor(store)

	c := store.addComplaint(&models.Complaint{TraderID: "trader-1", Title: "original"})

	// Two editors read version 0; the first write wins.
	_, err := editor.UpdateWithLock(ctx, c.ID, 0, models.ComplaintPatch{Title: strPtr("first")}, "tc-1")
	require.NoError(t, err)

	_, err = editor.UpdateWithLock(ctx, c.ID, 0, models.ComplaintPatch{Title: strPtr("second")}, "tc-2")
	assert.True(t, errors.Is(err, service.ErrConflict))

	got, err := store.Complaints().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title, "stale write mutated nothing")
	assert.Equal(t, 1, got.LockVersion)
}

func TestUpdateWithLockRetryAfterRefetch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	editor := service.NewComplaintEditor(store)

	c := store.addComplaint(&models.Complaint{TraderID: "trader-1", Title: "original"})

	_, err := editor.UpdateWithLock(ctx, c.ID, 0, models.ComplaintPatch{Title: strPtr("first")}, "tc-1")
	require.NoError(t, err)

	// The loser refetches and retries at the current version.
	cur, err := store.Complaints().Get(ctx, c.ID)
	require.NoError(t, err)
	got, err := editor.UpdateWithLock(ctx, c.ID, cur.LockVersion, models.ComplaintPatch{Title: strPtr("second")}, "tc-2")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title)
	assert.Equal(t, 2, got.LockVersion)
}

func TestUpdateWithLockUnknownComplaint(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	editor := service.NewComplaintEditor(store)

	_, err := editor.UpdateWithLock(ctx, "missing", 0, models.ComplaintPatch{Title: strPtr("x")}, "tc-1")
	assert.True(t, errors.Is(err, service.ErrNotFound))
}
