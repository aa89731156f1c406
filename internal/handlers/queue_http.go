package handlers

import (
	"net/http"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/middleware"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/utils"
)

type QueueHTTP struct {
	queue *service.QueueService
}

func NewQueueHTTP(queue *service.QueueService) *QueueHTTP {
	return &QueueHTTP{queue: queue}
}

// GET /api/queue/mine — the caller's assigned queue entries.
func (h *QueueHTTP) Mine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.queue.QueueForUser(r.Context(), actor(r))
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
	}
}

// GET /api/queue — the caller's committee queue, position-ordered.
func (h *QueueHTTP) ForRole() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, _ := utils.GetString(r.Context(), middleware.CtxRole)
		items, err := h.queue.QueueForRole(r.Context(), models.Role(role))
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
	}
}

// POST /api/queue/rebalance?role= — assign any backlog entries that have no
// assignee yet. Admin-triggered; the hourly job does the same.
func (h *QueueHTTP) Rebalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := models.Role(r.URL.Query().Get("role"))
		if !role.Valid() {
			role = models.RoleTechnicalCommittee
		}
		n, err := h.queue.Rebalance(r.Context(), role, actor(r))
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]int{"assigned": n})
	}
}
