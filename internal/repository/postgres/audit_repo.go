package postgres

import (
	"context"
	"fmt"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"

	"github.com/google/uuid"
)

type AuditRepo struct{ db DBTX }

func (r *AuditRepo) Record(ctx context.Context, actorID, action, targetType, targetID, details string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, target_type, target_id, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, uuid.NewString(), actorID, action, targetType, targetID, details)
	if err != nil {
		return fmt.Errorf("audit record %s: %w", action, err)
	}
	return nil
}

func (r *AuditRepo) ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, actor_id, action, target_type, target_id, details, created_at
		FROM audit_logs
		WHERE target_type=$1 AND target_id=$2
		ORDER BY created_at ASC
	`, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.ActorID, &l.Action, &l.TargetType, &l.TargetID, &l.Details, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
