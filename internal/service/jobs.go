package service

import (
	"context"
	"fmt"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/pkg/logger"
	"UD_referral_program/pkg/metrics"

	"go.uber.org/zap"
)

const (
	JobLeaderboard  = "leaderboard"
	JobMonthlyPrize = "monthly_prize"
	JobCleanup      = "cleanup_clicks"
)

type leaderboardBuilder interface {
	RebuildLeaderboard(ctx context.Context) (*model.LeaderboardRebuild, error)
}

type prizeSelector interface {
	ComputeMonthlyPrize(ctx context.Context) (*model.MonthlyPrizeResult, error)
}

type clickCleaner interface {
	CleanupOldClicks(ctx context.Context) (*model.CleanupResult, error)
}

// JobRunner runs the batch jobs for both the cron endpoints and the
// in-process scheduler, recording metrics and reporting to operators.
type JobRunner struct {
	leaderboard leaderboardBuilder
	prize       prizeSelector
	cleaner     clickCleaner
	notifier    Notifier
}

func NewJobRunner(leaderboard leaderboardBuilder, prize prizeSelector, cleaner clickCleaner, notifier Notifier) *JobRunner {
	return &JobRunner{
		leaderboard: leaderboard,
		prize:       prize,
		cleaner:     cleaner,
		notifier:    notifier,
	}
}

func (r *JobRunner) RebuildLeaderboard(ctx context.Context) (*model.LeaderboardRebuild, error) {
	started := r.start(JobLeaderboard)

	res, err := r.leaderboard.RebuildLeaderboard(ctx)
	r.finish(ctx, JobLeaderboard, started, err)
	if err != nil {
		return nil, err
	}

	r.notify(ctx, fmt.Sprintf("Leaderboard %s rebuilt: %d referrers ranked", res.WeekID, res.Entries))
	return res, nil
}

func (r *JobRunner) ComputeMonthlyPrize(ctx context.Context) (*model.MonthlyPrizeResult, error) {
	started := r.start(JobMonthlyPrize)

	res, err := r.prize.ComputeMonthlyPrize(ctx)
	r.finish(ctx, JobMonthlyPrize, started, err)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Prize == nil:
		r.notify(ctx, fmt.Sprintf("Monthly prize %s: no referrer qualified", res.MonthKey))
	case res.Created:
		r.notify(ctx, fmt.Sprintf("Monthly prize %s awarded to user %d with %d referrals",
			res.MonthKey, res.Prize.WinnerUserID, res.Prize.ReferralsCount))
	}

	return res, nil
}

func (r *JobRunner) CleanupOldClicks(ctx context.Context) (*model.CleanupResult, error) {
	started := r.start(JobCleanup)

	res, err := r.cleaner.CleanupOldClicks(ctx)
	r.finish(ctx, JobCleanup, started, err)
	if err != nil {
		return nil, err
	}

	logger.Logger().Info("old clicks removed",
		zap.Int64("deleted", res.Deleted),
		zap.Time("cutoff", res.Cutoff))
	return res, nil
}

func (r *JobRunner) start(job string) time.Time {
	logger.Logger().Info("job started", zap.String("job", job))
	return time.Now()
}

func (r *JobRunner) finish(ctx context.Context, job string, started time.Time, err error) {
	metrics.ObserveJob(job, started, err)

	log := logger.Logger().With(
		zap.String("job", job),
		zap.Duration("took", time.Since(started)))
	if err != nil {
		log.Error("job failed", zap.Error(err))
		r.notify(ctx, fmt.Sprintf("Job %s failed: %v", job, err))
		return
	}
	log.Info("job finished")
}

func (r *JobRunner) notify(ctx context.Context, text string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, text); err != nil {
		logger.Logger().Warn("failed to send job notification", zap.Error(err))
	}
}
