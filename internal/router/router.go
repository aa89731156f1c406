package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/config"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/handlers"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/middleware"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
)

// Deps carries everything the route tree needs. main builds it once.
type Deps struct {
	Log   zerolog.Logger
	Cfg   config.Config
	Store repository.Store

	Auth        *service.AuthService
	Queue       *service.QueueService
	Tasks       *service.TaskService
	Escalations *service.EscalationService
	Editor      *service.ComplaintEditor
	Workload    *service.WorkloadCalculator
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Recoverer(d.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{d.Cfg.Origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(200, time.Minute))
	r.Use(middleware.WithAuth(d.Log, d.Cfg))

	// Health
	r.Get("/healthz", handlers.Health())

	ah := handlers.NewAuthHTTP(d.Auth, d.Store.Users())
	uh := handlers.NewUserHTTP(d.Store.Users(), d.Auth)
	ch := handlers.NewComplaintHTTP(d.Store, d.Queue, d.Editor, d.Log)
	th := handlers.NewTaskHTTP(d.Tasks, d.Cfg.Workflow)
	eh := handlers.NewEscalationHTTP(d.Escalations)
	qh := handlers.NewQueueHTTP(d.Queue)
	rh := handlers.NewReportsHTTP(d.Store, d.Workload)

	committee := middleware.RequireRoles(models.RoleTechnicalCommittee, models.RoleHigherCommittee)
	higher := middleware.RequireRoles(models.RoleHigherCommittee)
	trader := middleware.RequireRoles(models.RoleTrader)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", ah.Register())
		r.Post("/login", ah.Login())
		r.Post("/logout", ah.Logout())
		r.With(middleware.RequireAuth).Get("/me", ah.Me())
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(higher).Get("/", uh.List())
		r.With(higher).Post("/", uh.Create())
		r.Route("/{id}", func(r chi.Router) {
			r.With(middleware.RequireSelfOrRoles(models.RoleHigherCommittee)).Get("/", uh.Get())
			r.With(higher).Patch("/role", uh.UpdateRole())
			r.With(higher).Patch("/active", uh.SetActive())
		})
	})

	r.Route("/api/complaints", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", ch.List())
		r.Post("/", ch.Create())
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", ch.Get())
			r.With(committee).Patch("/", ch.Update())
			r.With(higher).Get("/audit", ch.AuditTrail())
			r.Get("/escalations", eh.History())

			// task lifecycle (committee members only)
			r.With(committee).Post("/accept", th.Accept())
			r.With(committee).Post("/reject", th.Reject())
			r.With(committee).Post("/start", th.Start())
			r.With(committee).Post("/release", th.Release())
			r.With(committee).Post("/submit", th.Submit())
			r.With(committee).Post("/approve", th.Approve())
			r.With(committee).Post("/approval-reject", th.RejectApproval())

			// escalation flows
			r.With(committee).Post("/escalate", eh.Escalate())
			r.With(committee).Post("/mediation", eh.RequestMediation())
			r.With(committee).Post("/reassign", eh.Reassign())
			r.With(trader).Post("/appeal", eh.FileAppeal())
			r.With(trader).Post("/reopen", eh.Reopen())
		})
	})

	r.Route("/api/appeals", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(higher).Post("/{id}/decision", eh.DecideAppeal())
	})

	r.Route("/api/mediations", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(higher).Patch("/{id}", eh.UpdateMediation())
	})

	r.Route("/api/queue", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(committee).Get("/", qh.ForRole())
		r.With(committee).Get("/mine", qh.Mine())
		r.With(higher).Post("/rebalance", qh.Rebalance())
	})

	r.Route("/api/reports", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(committee).Get("/summary", rh.Summary())
		r.With(higher).Get("/workload", rh.Workload())
	})

	return r
}
