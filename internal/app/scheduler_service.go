package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/config"
	"github.com/dokzlo13/mysticd/internal/ledger"
	"github.com/dokzlo13/mysticd/internal/scheduler"
)

// SchedulerService runs schedules declared by the Lua script.
type SchedulerService struct {
	Scheduler *scheduler.Scheduler
}

// NewSchedulerService creates the scheduler. Its runner is set once the Lua
// service exists.
func NewSchedulerService(cfg *config.Config, l *ledger.Ledger) *SchedulerService {
	return &SchedulerService{
		Scheduler: scheduler.New(nil, l, cfg.Scheduler.Timezone),
	}
}

// Start runs boot recovery and then the scheduler loop. The runner must be
// accepting work, so this starts after the Lua worker.
func (s *SchedulerService) Start(ctx context.Context) {
	go func() {
		s.Scheduler.RunBootRecovery(ctx)
		if err := s.Scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler error")
		}
	}()
}
