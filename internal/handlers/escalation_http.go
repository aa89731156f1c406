package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/utils"
)

// EscalationHTTP exposes escalation, appeal, mediation, reassignment and
// reopening.
type EscalationHTTP struct {
	svc *service.EscalationService
}

func NewEscalationHTTP(svc *service.EscalationService) *EscalationHTTP {
	return &EscalationHTTP{svc: svc}
}

type reasonDTO struct {
	Reason string `json:"reason"`
}

// POST /api/complaints/{id}/escalate
func (h *EscalationHTTP) Escalate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in reasonDTO
		_ = json.NewDecoder(r.Body).Decode(&in)
		c, err := h.svc.Escalate(r.Context(), chi.URLParam(r, "id"), actor(r), in.Reason)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}

// POST /api/complaints/{id}/appeal
func (h *EscalationHTTP) FileAppeal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in reasonDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Reason == "" {
			utils.Error(w, http.StatusBadRequest, "reason is required")
			return
		}
		a, err := h.svc.FileAppeal(r.Context(), chi.URLParam(r, "id"), actor(r), in.Reason)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusCreated, a)
	}
}

// POST /api/appeals/{id}/decision
func (h *EscalationHTTP) DecideAppeal() http.HandlerFunc {
	type inDTO struct {
		Accept bool   `json:"accept"`
		Notes  string `json:"notes"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		a, err := h.svc.DecideAppeal(r.Context(), chi.URLParam(r, "id"), actor(r), in.Accept, in.Notes)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, a)
	}
}

// POST /api/complaints/{id}/mediation
func (h *EscalationHTTP) RequestMediation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in reasonDTO
		_ = json.NewDecoder(r.Body).Decode(&in)
		m, err := h.svc.RequestMediation(r.Context(), chi.URLParam(r, "id"), actor(r), in.Reason)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusCreated, m)
	}
}

// PATCH /api/mediations/{id}
func (h *EscalationHTTP) UpdateMediation() http.HandlerFunc {
	type inDTO struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Status == "" {
			utils.Error(w, http.StatusBadRequest, "status is required")
			return
		}
		m, err := h.svc.UpdateMediation(r.Context(), chi.URLParam(r, "id"), actor(r), models.MediationStatus(in.Status), in.Notes)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, m)
	}
}

// POST /api/complaints/{id}/reassign
// With targetUserId the current assignee hands the task to a named peer;
// without it the system picks the least-loaded peer.
func (h *EscalationHTTP) Reassign() http.HandlerFunc {
	type inDTO struct {
		TargetUserID string `json:"targetUserId"`
		Reason       string `json:"reason"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		_ = json.NewDecoder(r.Body).Decode(&in)

		var (
			c   *models.Complaint
			err error
		)
		if in.TargetUserID != "" {
			c, err = h.svc.ReassignTo(r.Context(), chi.URLParam(r, "id"), actor(r), in.TargetUserID, in.Reason)
		} else {
			c, err = h.svc.ReassignAuto(r.Context(), chi.URLParam(r, "id"), actor(r), in.Reason)
		}
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}

// POST /api/complaints/{id}/reopen
func (h *EscalationHTTP) Reopen() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in reasonDTO
		_ = json.NewDecoder(r.Body).Decode(&in)
		c, err := h.svc.Reopen(r.Context(), chi.URLParam(r, "id"), actor(r), in.Reason)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}

// GET /api/complaints/{id}/escalations
func (h *EscalationHTTP) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.svc.EscalationHistory(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
	}
}
