package postgres

import (
	"context"
	"time"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type EscalationRepo struct{ db DBTX }

func (r *EscalationRepo) CreateEscalation(ctx context.Context, e *models.Escalation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO escalations (id, complaint_id, type, target_role, reason, escalated_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.ComplaintID, e.Type, e.TargetRole, e.Reason, e.EscalatedBy, e.CreatedAt)
	return asRepoErr(err)
}

func (r *EscalationRepo) ListEscalations(ctx context.Context, complaintID string) ([]models.Escalation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, complaint_id, type, target_role, reason, escalated_by, resolved_by, resolved_at, created_at
		FROM escalations
		WHERE complaint_id=$1
		ORDER BY created_at ASC
	`, complaintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Escalation
	for rows.Next() {
		var e models.Escalation
		if err := rows.Scan(&e.ID, &e.ComplaintID, &e.Type, &e.TargetRole, &e.Reason,
			&e.EscalatedBy, &e.ResolvedBy, &e.ResolvedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EscalationRepo) CreateAppeal(ctx context.Context, a *models.Appeal) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO appeals (id, complaint_id, trader_id, reason, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, a.ID, a.ComplaintID, a.TraderID, a.Reason, a.Status, a.CreatedAt)
	return asRepoErr(err)
}

func (r *EscalationRepo) scanAppeal(row pgx.Row) (*models.Appeal, error) {
	var a models.Appeal
	err := row.Scan(&a.ID, &a.ComplaintID, &a.TraderID, &a.Reason, &a.Status,
		&a.DecidedBy, &a.DecidedAt, &a.DecisionNotes, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

const appealCols = `id, complaint_id, trader_id, reason, status, decided_by, decided_at, decision_notes, created_at`

func (r *EscalationRepo) GetAppeal(ctx context.Context, id string) (*models.Appeal, error) {
	return r.scanAppeal(r.db.QueryRow(ctx, `SELECT `+appealCols+` FROM appeals WHERE id=$1`, id))
}

func (r *EscalationRepo) GetPendingAppeal(ctx context.Context, complaintID string) (*models.Appeal, error) {
	return r.scanAppeal(r.db.QueryRow(ctx, `
		SELECT `+appealCols+` FROM appeals
		WHERE complaint_id=$1 AND status=$2
		ORDER BY created_at DESC
		LIMIT 1
	`, complaintID, models.AppealPending))
}

func (r *EscalationRepo) UpdateAppeal(ctx context.Context, a *models.Appeal) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE appeals
		SET status=$1, decided_by=$2, decided_at=$3, decision_notes=$4
		WHERE id=$5
	`, a.Status, a.DecidedBy, a.DecidedAt, a.DecisionNotes, a.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const mediationCols = `id, complaint_id, requested_by, reason, status, updated_by, resolved_at, created_at`

func (r *EscalationRepo) CreateMediation(ctx context.Context, m *models.MediationRequest) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO mediation_requests (id, complaint_id, requested_by, reason, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, m.ID, m.ComplaintID, m.RequestedBy, m.Reason, m.Status, m.CreatedAt)
	return asRepoErr(err)
}

func (r *EscalationRepo) scanMediation(row pgx.Row) (*models.MediationRequest, error) {
	var m models.MediationRequest
	err := row.Scan(&m.ID, &m.ComplaintID, &m.RequestedBy, &m.Reason, &m.Status,
		&m.UpdatedBy, &m.ResolvedAt, &m.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *EscalationRepo) GetMediation(ctx context.Context, id string) (*models.MediationRequest, error) {
	return r.scanMediation(r.db.QueryRow(ctx, `SELECT `+mediationCols+` FROM mediation_requests WHERE id=$1`, id))
}

func (r *EscalationRepo) GetActiveMediation(ctx context.Context, complaintID string) (*models.MediationRequest, error) {
	return r.scanMediation(r.db.QueryRow(ctx, `
		SELECT `+mediationCols+` FROM mediation_requests
		WHERE complaint_id=$1 AND status = ANY($2)
		ORDER BY created_at DESC
		LIMIT 1
	`, complaintID, []string{
		string(models.MediationPending),
		string(models.MediationAccepted),
		string(models.MediationInProgress),
	}))
}

func (r *EscalationRepo) UpdateMediation(ctx context.Context, m *models.MediationRequest) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE mediation_requests
		SET status=$1, updated_by=$2, resolved_at=$3
		WHERE id=$4
	`, m.Status, m.UpdatedBy, m.ResolvedAt, m.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *EscalationRepo) CreateApprovalStage(ctx context.Context, s *models.ApprovalStage) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO approval_stages (id, complaint_id, required_approvals, approved_count, closed, created_at)
		VALUES ($1,$2,$3,0,FALSE,$4)
	`, s.ID, s.ComplaintID, s.RequiredApprovals, s.CreatedAt)
	return asRepoErr(err)
}

func (r *EscalationRepo) GetOpenApprovalStage(ctx context.Context, complaintID string) (*models.ApprovalStage, error) {
	var s models.ApprovalStage
	err := r.db.QueryRow(ctx, `
		SELECT id, complaint_id, required_approvals, approved_count, closed, created_at, closed_at
		FROM approval_stages
		WHERE complaint_id=$1 AND closed=FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, complaintID).Scan(&s.ID, &s.ComplaintID, &s.RequiredApprovals, &s.ApprovedCount, &s.Closed, &s.CreatedAt, &s.ClosedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// RecordApproval inserts the approver's vote (unique per stage) and bumps the
// stage counter in one transaction-bound sequence.
func (r *EscalationRepo) RecordApproval(ctx context.Context, stageID, approverID string) (int, error) {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO approval_votes (id, stage_id, approver_id, created_at)
		VALUES ($1,$2,$3,now())
	`, uuid.NewString(), stageID, approverID); err != nil {
		return 0, asRepoErr(err)
	}

	var count int
	err := r.db.QueryRow(ctx, `
		UPDATE approval_stages
		SET approved_count = approved_count + 1
		WHERE id=$1
		RETURNING approved_count
	`, stageID).Scan(&count)
	return count, err
}

func (r *EscalationRepo) CloseApprovalStage(ctx context.Context, stageID string) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE approval_stages SET closed=TRUE, closed_at=now() WHERE id=$1
	`, stageID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
