package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/config"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/middleware"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/utils"
)

// TaskHTTP exposes the task lifecycle: accept, reject, claim, submit and the
// approval round.
type TaskHTTP struct {
	tasks    *service.TaskService
	settings config.Settings
}

func NewTaskHTTP(tasks *service.TaskService, settings config.Settings) *TaskHTTP {
	return &TaskHTTP{tasks: tasks, settings: settings}
}

func actor(r *http.Request) string {
	uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
	return uid
}

// POST /api/complaints/{id}/accept
func (h *TaskHTTP) Accept() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := h.tasks.AcceptTask(r.Context(), chi.URLParam(r, "id"), actor(r))
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}

// POST /api/complaints/{id}/reject
func (h *TaskHTTP) Reject() http.HandlerFunc {
	type inDTO struct {
		Reason string `json:"reason"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		_ = json.NewDecoder(r.Body).Decode(&in)
		c, err := h.tasks.RejectTask(r.Context(), chi.URLParam(r, "id"), actor(r), in.Reason)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}

// POST /api/complaints/{id}/start
func (h *TaskHTTP) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := h.tasks.StartWorking(r.Context(), chi.URLParam(r, "id"), actor(r))
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}

// POST /api/complaints/{id}/release
func (h *TaskHTTP) Release() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := h.tasks.ReleaseClaim(r.Context(), chi.URLParam(r, "id"), actor(r))
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}

// POST /api/complaints/{id}/submit
func (h *TaskHTTP) Submit() http.HandlerFunc {
	type inDTO struct {
		RequiredApprovals int `json:"requiredApprovals"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		_ = json.NewDecoder(r.Body).Decode(&in)
		required := in.RequiredApprovals
		if required <= 0 {
			required = h.settings.DefaultApprovals
		}
		c, err := h.tasks.SubmitForApproval(r.Context(), chi.URLParam(r, "id"), actor(r), required)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}

// POST /api/complaints/{id}/approve
func (h *TaskHTTP) Approve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := h.tasks.ApproveTask(r.Context(), chi.URLParam(r, "id"), actor(r), h.settings.ReopenWindow)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}

// POST /api/complaints/{id}/approval-reject
func (h *TaskHTTP) RejectApproval() http.HandlerFunc {
	type inDTO struct {
		Reason string `json:"reason"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		_ = json.NewDecoder(r.Body).Decode(&in)
		c, err := h.tasks.RejectApproval(r.Context(), chi.URLParam(r, "id"), actor(r), in.Reason)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}
