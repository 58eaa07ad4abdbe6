package service

import (
	"context"
	"errors"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/repository"
	"UD_referral_program/pkg/logger"

	"go.uber.org/zap"
)

type linker interface {
	ReferralLink(code string) string
}

type tierLookup interface {
	NextTier(count int) *model.NextTier
}

type SummaryService struct {
	repo  SummaryRepository
	links linker
	tiers tierLookup
	now   func() time.Time
}

func NewSummaryService(repo SummaryRepository, links linker, tiers tierLookup) *SummaryService {
	return &SummaryService{
		repo:  repo,
		links: links,
		tiers: tiers,
		now:   time.Now,
	}
}

// GetSummary reports the caller's referral stats. It never fails on store
// errors; whatever could not be read stays zero.
func (s *SummaryService) GetSummary(ctx context.Context, userID int64) (*model.Summary, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	log := logger.Logger().With(zap.Int64("user_id", userID))
	summary := &model.Summary{}

	rc, err := s.repo.GetReferralCodeByUser(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		log.Warn("summary: referral code unavailable", zap.Error(err))
	default:
		summary.ReferralCode = rc.Code
		summary.ReferralLink = s.links.ReferralLink(rc.Code)

		if summary.Clicks, err = s.repo.CountClicksByCode(ctx, rc.Code); err != nil {
			log.Warn("summary: click count unavailable", zap.Error(err))
		}
	}

	if summary.VerifiedCount, err = s.repo.CountVerifiedReferrals(ctx, userID); err != nil {
		log.Warn("summary: verified count unavailable", zap.Error(err))
	}

	if summary.EarnedCents, err = s.repo.SumRewardCents(ctx, userID); err != nil {
		log.Warn("summary: earnings unavailable", zap.Error(err))
	}

	weekStart := WeekStart(s.now())
	if summary.ThisWeekPoints, err = s.repo.CountVerifiedReferralsBetween(ctx, userID, weekStart, weekStart.AddDate(0, 0, 7)); err != nil {
		log.Warn("summary: weekly points unavailable", zap.Error(err))
	}

	summary.NextTier = s.tiers.NextTier(summary.VerifiedCount)

	return summary, nil
}
