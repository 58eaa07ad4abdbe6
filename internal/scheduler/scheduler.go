// Package scheduler runs the batch jobs in-process on cron expressions, for
// deployments without an external scheduler calling the cron endpoints.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"UD_referral_program/internal/service"
	"UD_referral_program/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	Leaderboard  string        `mapstructure:"leaderboard"`
	MonthlyPrize string        `mapstructure:"monthlyPrize"`
	Cleanup      string        `mapstructure:"cleanup"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		Leaderboard:  "*/15 * * * *",
		MonthlyPrize: "10 0 1 * *",
		Cleanup:      "30 3 * * *",
		Timeout:      5 * time.Minute,
	}
}

type Scheduler struct {
	sched   gocron.Scheduler
	runner  service.JobRunnerI
	timeout time.Duration
}

func New(cfg Config, runner service.JobRunnerI) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		sched:   sched,
		runner:  runner,
		timeout: cfg.Timeout,
	}

	jobs := []struct {
		name string
		cron string
		fn   func(ctx context.Context) error
	}{
		{name: service.JobLeaderboard, cron: cfg.Leaderboard, fn: func(ctx context.Context) error {
			_, err := runner.RebuildLeaderboard(ctx)
			return err
		}},
		{name: service.JobMonthlyPrize, cron: cfg.MonthlyPrize, fn: func(ctx context.Context) error {
			_, err := runner.ComputeMonthlyPrize(ctx)
			return err
		}},
		{name: service.JobCleanup, cron: cfg.Cleanup, fn: func(ctx context.Context) error {
			_, err := runner.CleanupOldClicks(ctx)
			return err
		}},
	}

	for _, j := range jobs {
		if j.cron == "" {
			continue
		}

		name, fn := j.name, j.fn
		_, err := sched.NewJob(
			gocron.CronJob(j.cron, false),
			gocron.NewTask(func() { s.run(name, fn) }),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to schedule %s job: %w", name, err)
		}
	}

	return s, nil
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) error) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// The runner already logs and records the failure.
	if err := fn(ctx); err != nil {
		logger.Logger().Debug("scheduled job returned error", zap.String("job", name), zap.Error(err))
	}
}

// JobNames lists the scheduled jobs.
func (s *Scheduler) JobNames() []string {
	var names []string
	for _, j := range s.sched.Jobs() {
		names = append(names, j.Name())
	}
	return names
}

func (s *Scheduler) Start() {
	s.sched.Start()
	logger.Logger().Info("in-process scheduler started", zap.Strings("jobs", s.JobNames()))
}

func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}
