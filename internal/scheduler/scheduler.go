// Package scheduler drives the time-based workflow jobs: SLA checks and
// warnings on the hourly tick, auto-close and reopen reminders on the daily
// tick. Every job is idempotent, so overlapping instances of the API can run
// the scheduler concurrently without double processing.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/config"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
)

type Scheduler struct {
	workflow *service.WorkflowService
	queue    *service.QueueService
	settings config.Settings
	actor    string // system actor id recorded on automated audit entries
	log      zerolog.Logger
}

func New(workflow *service.WorkflowService, queue *service.QueueService, settings config.Settings, systemActor string, log zerolog.Logger) *Scheduler {
	return &Scheduler{workflow: workflow, queue: queue, settings: settings, actor: systemActor, log: log}
}

// Run blocks until ctx is cancelled. Meant to be started as a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	hourly := time.NewTicker(s.settings.HourlyInterval)
	daily := time.NewTicker(s.settings.DailyInterval)
	defer hourly.Stop()
	defer daily.Stop()

	// One pass at startup so a restart never extends an SLA.
	s.hourlyPass(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-hourly.C:
			s.hourlyPass(ctx)
		case <-daily.C:
			s.dailyPass(ctx)
		}
	}
}

func (s *Scheduler) hourlyPass(ctx context.Context) {
	if n, err := s.workflow.CheckSLA(ctx); err != nil {
		s.log.Error().Err(err).Msg("sla check failed")
	} else if n > 0 {
		s.log.Info().Int("escalated", n).Msg("sla check")
	}

	if n, err := s.workflow.SLAWarnings(ctx); err != nil {
		s.log.Error().Err(err).Msg("sla warnings failed")
	} else if n > 0 {
		s.log.Info().Int("warned", n).Msg("sla warnings")
	}

	for _, role := range []models.Role{models.RoleTechnicalCommittee, models.RoleHigherCommittee} {
		if n, err := s.queue.Rebalance(ctx, role, s.actor); err != nil {
			s.log.Error().Err(err).Str("role", string(role)).Msg("rebalance failed")
		} else if n > 0 {
			s.log.Info().Int("assigned", n).Str("role", string(role)).Msg("rebalance")
		}
	}
}

func (s *Scheduler) dailyPass(ctx context.Context) {
	if n, err := s.workflow.AutoClose(ctx); err != nil {
		s.log.Error().Err(err).Msg("auto close failed")
	} else if n > 0 {
		s.log.Info().Int("closed", n).Msg("auto close")
	}

	if n, err := s.workflow.ReopenReminders(ctx); err != nil {
		s.log.Error().Err(err).Msg("reopen reminders failed")
	} else if n > 0 {
		s.log.Info().Int("reminded", n).Msg("reopen reminders")
	}
}
