package service

import (
	"context"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"
)

// activeWeight privileges complaints a member actively owns over entries
// merely sitting in their queue, so new work spreads away from busy reviewers.
const activeWeight = 1.5

// WorkloadCalculator computes live load scores for committee members. It is
// read-only and always recomputes from current counts; scores are never
// cached because they change with every assignment.
type WorkloadCalculator struct {
	store repository.Store
}

func NewWorkloadCalculator(s repository.Store) *WorkloadCalculator {
	return &WorkloadCalculator{store: s}
}

// Score returns 1.5 × (complaints the user owns in under_review/escalated)
// + (queue entries assigned to the user). Lower is better.
func (w *WorkloadCalculator) Score(ctx context.Context, userID string) (float64, error) {
	active, err := w.store.Complaints().CountAssignedInStatuses(ctx, userID,
		[]models.Status{models.StatusUnderReview, models.StatusEscalated})
	if err != nil {
		return 0, err
	}
	backlog, err := w.store.Queue().CountAssignedTo(ctx, userID)
	if err != nil {
		return 0, err
	}
	return activeWeight*float64(active) + float64(backlog), nil
}

// BestCandidate returns the least-loaded active member of the role, skipping
// any ids in exclude. Ties break on the lower user id so the choice is
// deterministic. Returns (nil, 0, nil) when nobody is eligible; the caller
// leaves the complaint queued.
func (w *WorkloadCalculator) BestCandidate(ctx context.Context, role models.Role, exclude ...string) (*models.User, float64, error) {
	candidates, err := w.store.Users().ListActiveByRole(ctx, role)
	if err != nil {
		return nil, 0, err
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var best *models.User
	var bestScore float64
	for i := range candidates {
		u := candidates[i]
		if _, ok := skip[u.ID]; ok {
			continue
		}
		score, err := w.Score(ctx, u.ID)
		if err != nil {
			return nil, 0, err
		}
		if best == nil || score < bestScore || (score == bestScore && u.ID < best.ID) {
			best = &candidates[i]
			bestScore = score
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestScore, nil
}
