package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/repository"
	"UD_referral_program/pkg/logger"
	"UD_referral_program/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PrizeService struct {
	repo PrizeRepository
	cfg  MonthlyPrizeConfig
	now  func() time.Time
}

func NewPrizeService(repo PrizeRepository, cfg MonthlyPrizeConfig) *PrizeService {
	return &PrizeService{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

// PreviousMonth returns the key and [from, to) bounds of the calendar month
// before t, in UTC.
func PreviousMonth(t time.Time) (key string, from, to time.Time) {
	t = t.UTC()
	to = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	from = to.AddDate(0, -1, 0)
	return from.Format("2006-01"), from, to
}

// SelectWinner picks the top referrer: most referrals, then earliest
// verification, then lowest user id. Referrers under minReferrals never win.
func SelectWinner(counts []model.ReferrerCount, minReferrals int) (*model.ReferrerCount, int) {
	var (
		winner     *model.ReferrerCount
		qualifying int
	)

	for i := range counts {
		c := counts[i]
		if c.Count < minReferrals {
			continue
		}
		qualifying++

		if winner == nil || beats(c, *winner) {
			winner = &c
		}
	}

	return winner, qualifying
}

func beats(a, b model.ReferrerCount) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	if !a.FirstVerifiedAt.Equal(b.FirstVerifiedAt) {
		return a.FirstVerifiedAt.Before(b.FirstVerifiedAt)
	}
	return a.UserID < b.UserID
}

// ComputeMonthlyPrize awards the previous month's grand prize. A month that
// already has a prize is left untouched and reported with Created=false.
func (s *PrizeService) ComputeMonthlyPrize(ctx context.Context) (*model.MonthlyPrizeResult, error) {
	log := logger.Logger()

	now := s.now()
	monthKey, from, to := PreviousMonth(now)
	result := &model.MonthlyPrizeResult{MonthKey: monthKey}

	existing, err := s.repo.GetMonthlyPrize(ctx, monthKey)
	if err == nil {
		log.Info("monthly prize already awarded", zap.String("month", monthKey))
		result.Prize = existing
		return result, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get monthly prize: %w", err)
	}

	counts, err := s.repo.CountVerifiedByReferrer(ctx, from, to, s.cfg.MinReferrals, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly referrals: %w", err)
	}

	winner, qualifying := SelectWinner(counts, s.cfg.MinReferrals)
	result.Qualifying = qualifying
	if winner == nil {
		log.Info("no referrer qualified for the monthly prize",
			zap.String("month", monthKey),
			zap.Int("min_referrals", s.cfg.MinReferrals))
		return result, nil
	}

	rw := &model.Reward{
		ID:          uuid.New(),
		UserID:      winner.UserID,
		Type:        s.cfg.Type,
		AmountCents: s.cfg.AmountCents,
		Source:      model.RewardSourceMonthlyPrize,
		Status:      model.RewardStatusApproved,
		Description: fmt.Sprintf("%s %s", s.cfg.Description, monthKey),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	prize, created, err := s.repo.AwardMonthlyPrize(ctx, &model.MonthlyPrize{
		MonthKey:       monthKey,
		WinnerUserID:   winner.UserID,
		ReferralsCount: winner.Count,
		RewardID:       rw.ID,
		AwardedAt:      now,
	}, rw)
	if err != nil {
		return nil, fmt.Errorf("failed to award monthly prize: %w", err)
	}

	result.Prize = prize
	result.Created = created

	if created {
		metrics.RewardsIssued.WithLabelValues(string(model.RewardSourceMonthlyPrize)).Inc()
		log.Info("monthly prize awarded",
			zap.String("month", monthKey),
			zap.Int64("winner_id", prize.WinnerUserID),
			zap.Int("referrals", prize.ReferralsCount))
	}

	return result, nil
}
