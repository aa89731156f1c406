package postgres

import (
	"context"
	"time"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type QueueRepo struct{ db DBTX }

const queueCols = `id, complaint_id, assigned_role, assigned_user, workload_score, queue_position, assigned_at, created_at`

func scanQueueEntry(row pgx.Row, e *models.TaskQueueEntry) error {
	return row.Scan(&e.ID, &e.ComplaintID, &e.AssignedRole, &e.AssignedUser,
		&e.WorkloadScore, &e.QueuePosition, &e.AssignedAt, &e.CreatedAt)
}

func collectQueueEntries(rows pgx.Rows) ([]models.TaskQueueEntry, error) {
	defer rows.Close()
	var out []models.TaskQueueEntry
	for rows.Next() {
		var e models.TaskQueueEntry
		if err := scanQueueEntry(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *QueueRepo) Create(ctx context.Context, e *models.TaskQueueEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()
	// queue_position comes from a per-table sequence so listings keep
	// insertion order per role.
	err := r.db.QueryRow(ctx, `
		INSERT INTO task_queue_entries
			(id, complaint_id, assigned_role, assigned_user, workload_score, assigned_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING queue_position
	`, e.ID, e.ComplaintID, e.AssignedRole, e.AssignedUser, e.WorkloadScore, e.AssignedAt, e.CreatedAt).
		Scan(&e.QueuePosition)
	return asRepoErr(err)
}

func (r *QueueRepo) Update(ctx context.Context, e *models.TaskQueueEntry) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE task_queue_entries
		SET assigned_user=$1, workload_score=$2, assigned_at=$3
		WHERE id=$4
	`, e.AssignedUser, e.WorkloadScore, e.AssignedAt, e.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *QueueRepo) GetByComplaintAndRole(ctx context.Context, complaintID string, role models.Role) (*models.TaskQueueEntry, error) {
	var e models.TaskQueueEntry
	err := scanQueueEntry(r.db.QueryRow(ctx, `
		SELECT `+queueCols+` FROM task_queue_entries
		WHERE complaint_id=$1 AND assigned_role=$2
	`, complaintID, role), &e)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *QueueRepo) GetLatestByComplaint(ctx context.Context, complaintID string) (*models.TaskQueueEntry, error) {
	var e models.TaskQueueEntry
	err := scanQueueEntry(r.db.QueryRow(ctx, `
		SELECT `+queueCols+` FROM task_queue_entries
		WHERE complaint_id=$1
		ORDER BY created_at DESC
		LIMIT 1
	`, complaintID), &e)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *QueueRepo) ListUnassigned(ctx context.Context, role models.Role) ([]models.TaskQueueEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+queueCols+` FROM task_queue_entries
		WHERE assigned_role=$1 AND assigned_user IS NULL
		ORDER BY queue_position ASC
	`, role)
	if err != nil {
		return nil, err
	}
	return collectQueueEntries(rows)
}

func (r *QueueRepo) ListByRole(ctx context.Context, role models.Role) ([]models.TaskQueueEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+queueCols+` FROM task_queue_entries
		WHERE assigned_role=$1
		ORDER BY queue_position ASC
	`, role)
	if err != nil {
		return nil, err
	}
	return collectQueueEntries(rows)
}

func (r *QueueRepo) ListByUser(ctx context.Context, userID string) ([]models.TaskQueueEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+queueCols+` FROM task_queue_entries
		WHERE assigned_user=$1
		ORDER BY queue_position ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectQueueEntries(rows)
}

func (r *QueueRepo) CountAssignedTo(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM task_queue_entries
		WHERE assigned_user=$1 AND assigned_at IS NOT NULL
	`, userID).Scan(&n)
	return n, err
}

func (r *QueueRepo) DeleteByComplaint(ctx context.Context, complaintID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM task_queue_entries WHERE complaint_id=$1`, complaintID)
	return err
}
