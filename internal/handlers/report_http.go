package handlers

import (
	"net/http"
	"time"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/utils"
)

type ReportsHTTP struct {
	store    repository.Store
	workload *service.WorkloadCalculator
}

func NewReportsHTTP(store repository.Store, workload *service.WorkloadCalculator) *ReportsHTTP {
	return &ReportsHTTP{store: store, workload: workload}
}

// GET /api/reports/summary
// Returns: { open, escalated, mediation, resolved7d }
func (h *ReportsHTTP) Summary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		open, err := h.store.Complaints().CountByStatuses(r.Context(),
			[]models.Status{models.StatusResolved, models.StatusRejected}, false)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		escalated, err := h.store.Complaints().CountByStatuses(r.Context(),
			[]models.Status{models.StatusEscalated}, true)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		mediation, err := h.store.Complaints().CountByStatuses(r.Context(),
			[]models.Status{models.StatusMediationPending, models.StatusMediationInProgress}, true)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		resolved7d, err := h.store.Complaints().CountResolvedSince(r.Context(), time.Now().Add(-7*24*time.Hour))
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		utils.JSON(w, http.StatusOK, map[string]int{
			"open":       open,
			"escalated":  escalated,
			"mediation":  mediation,
			"resolved7d": resolved7d,
		})
	}
}

// GET /api/reports/workload?role=
// Live load score per active member of the role; the same numbers queue
// placement uses.
func (h *ReportsHTTP) Workload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := models.Role(r.URL.Query().Get("role"))
		if !role.Valid() {
			role = models.RoleTechnicalCommittee
		}

		members, err := h.store.Users().ListActiveByRole(r.Context(), role)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		type row struct {
			UserID string  `json:"userId"`
			Name   string  `json:"name"`
			Score  float64 `json:"score"`
		}
		rows := make([]row, 0, len(members))
		for _, m := range members {
			score, err := h.workload.Score(r.Context(), m.ID)
			if err != nil {
				utils.Error(w, http.StatusInternalServerError, err.Error())
				return
			}
			rows = append(rows, row{UserID: m.ID, Name: m.Name, Score: score})
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": rows, "total": len(rows)})
	}
}
