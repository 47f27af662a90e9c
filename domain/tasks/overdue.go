package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/alex-d4v/Tiphys/internal/config"
	"github.com/alex-d4v/Tiphys/pkg/logger"
)

// Sweeper periodically moves pending tasks whose schedule slot has passed
// to "over deadline", in the store and in the day view.
type Sweeper struct {
	repo    *Repository
	working *WorkingSet
	cron    *cron.Cron
	log     *slog.Logger
	now     func() time.Time
}

// NewSweeper creates the overdue sweeper and registers it with the fx
// lifecycle when enabled.
func NewSweeper(lc fx.Lifecycle, repo *Repository, working *WorkingSet, cfg *config.Config, log *slog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		repo:    repo,
		working: working,
		log:     log.With(logger.Scope("tasks.sweeper")),
		now:     time.Now,
	}

	if !cfg.Scheduler.IsEnabled() {
		s.log.Debug("overdue sweeper disabled")
		return s, nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(cfg.Scheduler.OverdueSweepCron, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("overdue sweeper started",
				slog.String("schedule", cfg.Scheduler.OverdueSweepCron),
			)
			s.cron.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := s.cron.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})

	return s, nil
}

// Sweep runs one pass. Errors are logged; the next pass retries.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()
	today := now.Format("2006-01-02")
	nowTime := now.Format("15:04")

	flipped, err := s.repo.MarkOverdue(ctx, today, nowTime)
	if err != nil {
		s.log.Error("overdue sweep failed", logger.Error(err))
		return
	}

	// Patch the day view to match the store.
	for _, t := range s.working.List() {
		if t.Status == StatusPending && t.Time != nil && *t.Time < nowTime {
			t.Status = StatusOverDeadline
		}
	}

	if flipped > 0 {
		s.log.Info("marked overdue tasks", slog.Int("count", flipped))
	}
}
