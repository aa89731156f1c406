package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/config"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
)

const systemActor = models.SystemActorID

func testSettings() config.Settings {
	return config.Settings{
		SLAThreshold:     72 * time.Hour,
		SLAWarning:       48 * time.Hour,
		AutoCloseAfter:   7 * 24 * time.Hour,
		ReopenWindow:     7 * 24 * time.Hour,
		DefaultApprovals: 1,
	}
}

func newWorkflow(store *memStore) (*service.WorkflowService, *fakeNotifier) {
	n := &fakeNotifier{}
	log := zerolog.Nop()
	q := service.NewQueueService(store, n, log)
	return service.NewWorkflowService(store, q, n, testSettings(), systemActor, log), n
}

// ageComplaint pushes the stored row's last activity into the past.
func ageComplaint(store *memStore, id string, by time.Duration) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.complaints[id].UpdatedAt = time.Now().Add(-by)
}

func TestCheckSLAEscalatesStaleComplaints(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	wf, n := newWorkflow(store)
	store.addUser("hc-1", models.RoleHigherCommittee, true)

	stale := store.addComplaint(&models.Complaint{
		TraderID: "trader-1", Status: models.StatusUnderReview, AssignedTo: strPtr("tc-1"),
	})
	fresh := store.addComplaint(&models.Complaint{
		TraderID: "trader-1", Status: models.StatusUnderReview, AssignedTo: strPtr("tc-1"),
	})
	ageComplaint(store, stale.ID, 80*time.Hour)

	escalated, err := wf.CheckSLA(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)

	got, _ := store.Complaints().Get(ctx, stale.ID)
	assert.Equal(t, models.StatusEscalated, got.Status)
	assert.Equal(t, "hc-1", *got.AssignedTo)

	untouched, _ := store.Complaints().Get(ctx, fresh.ID)
	assert.Equal(t, models.StatusUnderReview, untouched.Status)

	hist, err := store.Escalations().ListEscalations(ctx, stale.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, models.EscalationTypeSLAViolation, hist[0].Type)
	assert.Equal(t, systemActor, hist[0].EscalatedBy)
	assert.True(t, store.hasAudit(models.ActionSLAEscalate))
	assert.Contains(t, n.escalations, "hc-1")
}

func TestCheckSLAIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	wf, _ := newWorkflow(store)
	store.addUser("hc-1", models.RoleHigherCommittee, true)

	c := store.addComplaint(&models.Complaint{
		TraderID: "trader-1", Status: models.StatusUnderReview, AssignedTo: strPtr("tc-1"),
	})
	ageComplaint(store, c.ID, 80*time.Hour)

	_, err := wf.CheckSLA(ctx)
	require.NoError(t, err)
	escalated, err := wf.CheckSLA(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, escalated, "already escalated, not under_review anymore")
}

func TestSLAWarningsOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	wf, n := newWorkflow(store)

	c := store.addComplaint(&models.Complaint{
		TraderID: "trader-1", Status: models.StatusUnderReview, AssignedTo: strPtr("tc-1"),
	})
	ageComplaint(store, c.ID, 50*time.Hour)

	warned, err := wf.SLAWarnings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, warned)
	assert.Contains(t, n.events, "tc-1:sla_warning")

	got, _ := store.Complaints().Get(ctx, c.ID)
	assert.True(t, got.SLAWarningSent)

	// Flag set: the next pass skips it.
	ageComplaint(store, c.ID, 50*time.Hour)
	warned, err = wf.SLAWarnings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, warned)
}

func TestAutoCloseRestartsReopenWindow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	wf, n := newWorkflow(store)

	resolvedAt := time.Now().Add(-8 * 24 * time.Hour)
	oldUntil := resolvedAt.Add(7 * 24 * time.Hour)
	c := store.addComplaint(&models.Complaint{
		TraderID: "trader-1", Status: models.StatusResolved, TaskStatus: models.TaskCompleted,
		ResolvedAt: &resolvedAt, CanReopenUntil: &oldUntil,
	})

	closed, err := wf.AutoClose(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	got, _ := store.Complaints().Get(ctx, c.ID)
	require.NotNil(t, got.ClosedAt)
	require.NotNil(t, got.CanReopenUntil)
	assert.True(t, got.CanReopenUntil.After(time.Now()),
		"closing restarts the reopen window from the closing moment")
	assert.Contains(t, n.events, "trader-1:closed")
	assert.True(t, store.hasAudit(models.ActionAutoClose))

	// Already closed: nothing left to do.
	closed, err = wf.AutoClose(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestReopenRemindersOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	wf, n := newWorkflow(store)

	soon := time.Now().Add(24 * time.Hour)
	c := store.addComplaint(&models.Complaint{
		TraderID: "trader-1", Status: models.StatusResolved, TaskStatus: models.TaskCompleted,
		CanReopenUntil: &soon,
	})
	// A window with plenty of time left is not reminded.
	later := time.Now().Add(6 * 24 * time.Hour)
	store.addComplaint(&models.Complaint{
		TraderID: "trader-2", Status: models.StatusResolved, TaskStatus: models.TaskCompleted,
		CanReopenUntil: &later,
	})

	sent, err := wf.ReopenReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Contains(t, n.events, "trader-1:reopen_window_closing")

	got, _ := store.Complaints().Get(ctx, c.ID)
	assert.True(t, got.ReopenReminderSent)

	sent, err = wf.ReopenReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}
