package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/middleware"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/utils"
)

// ComplaintHTTP wires complaint CRUD and the optimistic-lock update path.
// New complaints enter the Technical Committee queue on creation.
type ComplaintHTTP struct {
	store  repository.Store
	queue  *service.QueueService
	editor *service.ComplaintEditor
	log    zerolog.Logger
}

func NewComplaintHTTP(store repository.Store, queue *service.QueueService, editor *service.ComplaintEditor, log zerolog.Logger) *ComplaintHTTP {
	return &ComplaintHTTP{store: store, queue: queue, editor: editor, log: log}
}

// GET /api/complaints?q=&status=&category=&assignee=&sort=&order=&limit=&offset=
// Traders only ever see their own complaints regardless of filters.
func (h *ComplaintHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		f := repository.ComplaintFilter{
			Query:      strings.TrimSpace(qv.Get("q")),
			Status:     strings.TrimSpace(qv.Get("status")),
			Category:   strings.TrimSpace(qv.Get("category")),
			AssignedTo: strings.TrimSpace(qv.Get("assignee")),
			Sort:       qv.Get("sort"),
			Order:      qv.Get("order"),
			Limit:      utils.QueryInt(qv, "limit", 20),
			Offset:     utils.QueryInt(qv, "offset", 0),
		}

		role, _ := utils.GetString(r.Context(), middleware.CtxRole)
		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		if role == string(models.RoleTrader) {
			f.TraderID = uid
		}

		items, total, err := h.store.Complaints().List(r.Context(), f)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
		utils.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
	}
}

// GET /api/complaints/{id}
func (h *ComplaintHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}
		c, err := h.store.Complaints().Get(r.Context(), id)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if c == nil {
			utils.Error(w, http.StatusNotFound, "not found")
			return
		}
		role, _ := utils.GetString(r.Context(), middleware.CtxRole)
		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		if role == string(models.RoleTrader) && c.TraderID != uid {
			utils.Error(w, http.StatusForbidden, "forbidden")
			return
		}
		utils.JSON(w, http.StatusOK, c)
	}
}

// POST /api/complaints
// The complaint is persisted and then pushed into the Technical Committee
// queue; queue placement decides the initial assignee.
func (h *ComplaintHTTP) Create() http.HandlerFunc {
	type inDTO struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Priority    string `json:"priority"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		in.Title = strings.TrimSpace(in.Title)
		if in.Title == "" {
			utils.Error(w, http.StatusBadRequest, "title is required")
			return
		}

		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		if uid == "" {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		c := &models.Complaint{
			Title:           in.Title,
			Description:     strings.TrimSpace(in.Description),
			Category:        strings.TrimSpace(in.Category),
			Priority:        strings.TrimSpace(in.Priority),
			TraderID:        uid,
			Status:          models.StatusSubmitted,
			TaskStatus:      models.TaskUnassigned,
			EscalationState: models.EscalationNone,
		}

		err := h.store.WithTx(r.Context(), func(s repository.Store) error {
			if err := s.Complaints().Create(r.Context(), c); err != nil {
				return err
			}
			return s.Audit().Record(r.Context(), uid, models.ActionComplaintCreate, models.TargetComplaint, c.ID, c.Title)
		})
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		if _, err := h.queue.AddToQueue(r.Context(), c.ID, models.RoleTechnicalCommittee, uid); err != nil {
			// The complaint exists; queue placement can be retried by the
			// rebalance job. Report it but do not fail the create.
			h.log.Warn().Err(err).Str("complaint", c.ID).Msg("queue placement failed")
		}

		created, err := h.store.Complaints().Get(r.Context(), c.ID)
		if err != nil || created == nil {
			utils.JSON(w, http.StatusCreated, c)
			return
		}
		utils.JSON(w, http.StatusCreated, created)
	}
}

// PATCH /api/complaints/{id}
// The body must carry the lockVersion the client last read. A stale version
// is rejected with 409 and the client must re-read before retrying.
func (h *ComplaintHTTP) Update() http.HandlerFunc {
	type inDTO struct {
		LockVersion *int `json:"lockVersion"`
		models.ComplaintPatch
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if in.LockVersion == nil {
			utils.Error(w, http.StatusBadRequest, "lockVersion is required")
			return
		}

		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		updated, err := h.editor.UpdateWithLock(r.Context(), id, *in.LockVersion, in.ComplaintPatch, uid)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, updated)
	}
}

// GET /api/complaints/{id}/audit
func (h *ComplaintHTTP) AuditTrail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		logs, err := h.store.Audit().ListByTarget(r.Context(), models.TargetComplaint, id)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": logs, "total": len(logs)})
	}
}
