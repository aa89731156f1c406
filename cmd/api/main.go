package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/config"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/database"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/notify"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository/postgres"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/router"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/scheduler"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/pkg/logger"
)

func main() {
	// config + logger
	cfg := config.Load()
	l := logger.New(cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// db
	pool, err := database.Open(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		l.Fatal().Err(err).Msg("migrate failed")
	}

	// redis-backed notification fan-out
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	notifier := notify.NewService(rdb, l)
	go notifier.Run(ctx)

	// services
	store := postgres.NewStore(pool)
	queue := service.NewQueueService(store, notifier, l)
	tasks := service.NewTaskService(store, queue, notifier, cfg.Workflow.DefaultApprovals, l)
	escalations := service.NewEscalationService(store, queue, notifier, cfg.Workflow.ReopenWindow, l)
	workflow := service.NewWorkflowService(store, queue, notifier, cfg.Workflow, models.SystemActorID, l)

	go scheduler.New(workflow, queue, cfg.Workflow, models.SystemActorID, l).Run(ctx)

	// http
	r := router.New(router.Deps{
		Log:         l,
		Cfg:         cfg,
		Store:       store,
		Auth:        service.NewAuthService(store.Users(), cfg.SessionSecret),
		Queue:       queue,
		Tasks:       tasks,
		Escalations: escalations,
		Editor:      service.NewComplaintEditor(store),
		Workload:    service.NewWorkloadCalculator(store),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel() // stops scheduler + notifier

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	l.Info().Msg("shutdown complete")
}
