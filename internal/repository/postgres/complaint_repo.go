package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ComplaintRepo struct{ db DBTX }

const complaintCols = `
	id, title, description, category, priority, trader_id, assigned_to,
	status, task_status, escalation_state, lock_version, claimed_by,
	reopened_count, last_assigned_tc_id, accepted_at, resolved_at,
	can_reopen_until, closed_at, sla_warning_sent, reopen_reminder_sent,
	created_at, updated_at`

func scanComplaint(row pgx.Row, c *models.Complaint) error {
	return row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Category, &c.Priority, &c.TraderID, &c.AssignedTo,
		&c.Status, &c.TaskStatus, &c.EscalationState, &c.LockVersion, &c.ClaimedBy,
		&c.ReopenedCount, &c.LastAssignedTCID, &c.AcceptedAt, &c.ResolvedAt,
		&c.CanReopenUntil, &c.ClosedAt, &c.SLAWarningSent, &c.ReopenReminderSent,
		&c.CreatedAt, &c.UpdatedAt,
	)
}

func collectComplaints(rows pgx.Rows) ([]models.Complaint, error) {
	defer rows.Close()
	var out []models.Complaint
	for rows.Next() {
		var c models.Complaint
		if err := scanComplaint(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ComplaintRepo) Create(ctx context.Context, c *models.Complaint) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := r.db.Exec(ctx, `
		INSERT INTO complaints (
			id, title, description, category, priority, trader_id, assigned_to,
			status, task_status, escalation_state, lock_version, claimed_by,
			reopened_count, last_assigned_tc_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		c.ID, c.Title, c.Description, c.Category, c.Priority, c.TraderID, c.AssignedTo,
		c.Status, c.TaskStatus, c.EscalationState, c.LockVersion, c.ClaimedBy,
		c.ReopenedCount, c.LastAssignedTCID, c.CreatedAt, c.UpdatedAt,
	)
	return asRepoErr(err)
}

func (r *ComplaintRepo) Get(ctx context.Context, id string) (*models.Complaint, error) {
	var c models.Complaint
	err := scanComplaint(r.db.QueryRow(ctx, `SELECT `+complaintCols+` FROM complaints WHERE id=$1`, id), &c)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpdateVersioned is the compare-and-swap write: the row is matched on the
// lock_version the caller read, and the version advances by exactly one.
func (r *ComplaintRepo) UpdateVersioned(ctx context.Context, c *models.Complaint) error {
	now := time.Now()
	ct, err := r.db.Exec(ctx, `
		UPDATE complaints SET
			title=$1, description=$2, category=$3, priority=$4, assigned_to=$5,
			status=$6, task_status=$7, escalation_state=$8, claimed_by=$9,
			reopened_count=$10, last_assigned_tc_id=$11, accepted_at=$12,
			resolved_at=$13, can_reopen_until=$14, closed_at=$15,
			sla_warning_sent=$16, reopen_reminder_sent=$17,
			lock_version=lock_version+1, updated_at=$18
		WHERE id=$19 AND lock_version=$20
	`,
		c.Title, c.Description, c.Category, c.Priority, c.AssignedTo,
		c.Status, c.TaskStatus, c.EscalationState, c.ClaimedBy,
		c.ReopenedCount, c.LastAssignedTCID, c.AcceptedAt,
		c.ResolvedAt, c.CanReopenUntil, c.ClosedAt,
		c.SLAWarningSent, c.ReopenReminderSent,
		now, c.ID, c.LockVersion,
	)
	if err != nil {
		return asRepoErr(err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("complaint %s: %w", c.ID, repository.ErrVersionMismatch)
	}
	c.LockVersion++
	c.UpdatedAt = now
	return nil
}

func (r *ComplaintRepo) List(ctx context.Context, f repository.ComplaintFilter) ([]models.Complaint, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	clauses := []string{"1=1"}
	args := []any{}

	if q := strings.TrimSpace(f.Query); q != "" {
		p := "%" + q + "%"
		args = append(args, p, p)
		clauses = append(clauses, "(title ILIKE $"+itoa(len(args)-1)+" OR description ILIKE $"+itoa(len(args))+")")
	}
	if s := strings.TrimSpace(f.Status); s != "" {
		args = append(args, s)
		clauses = append(clauses, "status = $"+itoa(len(args)))
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		args = append(args, c)
		clauses = append(clauses, "category = $"+itoa(len(args)))
	}
	if t := strings.TrimSpace(f.TraderID); t != "" {
		args = append(args, t)
		clauses = append(clauses, "trader_id = $"+itoa(len(args)))
	}
	if a := strings.TrimSpace(f.AssignedTo); a != "" {
		args = append(args, a)
		clauses = append(clauses, "assigned_to = $"+itoa(len(args)))
	}
	whereSQL := "WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM complaints `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol := sanitizeSort(f.Sort, "updated_at")
	sortOrd := sanitizeOrder(f.Order, "desc")
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM complaints %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		complaintCols, whereSQL, sortCol, sortOrd, len(args)-1, len(args),
	), args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectComplaints(rows)
	return out, total, err
}

func (r *ComplaintRepo) CountAssignedInStatuses(ctx context.Context, userID string, statuses []models.Status) (int, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM complaints
		WHERE assigned_to = $1 AND status = ANY($2)
	`, userID, ss).Scan(&n)
	return n, err
}

func (r *ComplaintRepo) ListStaleUnderReview(ctx context.Context, before time.Time, unwarnedOnly bool) ([]models.Complaint, error) {
	sql := `SELECT ` + complaintCols + ` FROM complaints
		WHERE status = $1 AND updated_at < $2`
	if unwarnedOnly {
		sql += ` AND sla_warning_sent = FALSE`
	}
	rows, err := r.db.Query(ctx, sql+` ORDER BY updated_at ASC`, models.StatusUnderReview, before)
	if err != nil {
		return nil, err
	}
	return collectComplaints(rows)
}

func (r *ComplaintRepo) ListResolvedBefore(ctx context.Context, before time.Time) ([]models.Complaint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+complaintCols+` FROM complaints
		WHERE status = $1 AND resolved_at < $2 AND closed_at IS NULL
		ORDER BY resolved_at ASC
	`, models.StatusResolved, before)
	if err != nil {
		return nil, err
	}
	return collectComplaints(rows)
}

func (r *ComplaintRepo) ListReopenExpiring(ctx context.Context, within time.Time) ([]models.Complaint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+complaintCols+` FROM complaints
		WHERE status = $1 AND reopen_reminder_sent = FALSE
		  AND can_reopen_until IS NOT NULL
		  AND can_reopen_until > now() AND can_reopen_until <= $2
		ORDER BY can_reopen_until ASC
	`, models.StatusResolved, within)
	if err != nil {
		return nil, err
	}
	return collectComplaints(rows)
}

// CountByStatuses counts complaints IN or NOT IN the given statuses.
func (r *ComplaintRepo) CountByStatuses(ctx context.Context, statuses []models.Status, inclusive bool) (int, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	sql := `SELECT COUNT(*) FROM complaints WHERE status = ANY($1)`
	if !inclusive {
		sql = `SELECT COUNT(*) FROM complaints WHERE NOT (status = ANY($1))`
	}
	var n int
	err := r.db.QueryRow(ctx, sql, ss).Scan(&n)
	return n, err
}

func (r *ComplaintRepo) CountResolvedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM complaints
		WHERE status = ANY($1) AND resolved_at >= $2
	`, []string{string(models.StatusResolved)}, since).Scan(&n)
	return n, err
}

func sanitizeSort(s, def string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created_at", "updated_at", "priority", "status":
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return def
	}
}

func sanitizeOrder(o, def string) string {
	switch strings.ToLower(strings.TrimSpace(o)) {
	case "asc", "desc":
		return strings.ToLower(strings.TrimSpace(o))
	default:
		return def
	}
}
