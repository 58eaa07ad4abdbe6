package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/repository"
	"UD_referral_program/pkg/logger"
	"UD_referral_program/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxIdempotencyKeyLen = 255

type RewardService struct {
	repo  RewardRepository
	tiers []Tier
	now   func() time.Time
}

func NewRewardService(repo RewardRepository, tiers []Tier) *RewardService {
	return &RewardService{
		repo:  repo,
		tiers: tiers,
		now:   time.Now,
	}
}

// AwardTiers issues a pending reward for every tier the referrer has reached
// and not yet received. Tiers jumped over in one go are awarded too; the
// store's (user, source, tier) uniqueness keeps this idempotent.
func (s *RewardService) AwardTiers(ctx context.Context, referrerUserID int64) ([]*model.Reward, error) {
	count, err := s.repo.CountVerifiedReferrals(ctx, referrerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count verified referrals: %w", err)
	}

	if len(s.tiers) == 0 || count < s.tiers[0].Threshold {
		return nil, nil
	}

	awardedTiers, err := s.repo.ListAwardedTiers(ctx, referrerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list awarded tiers: %w", err)
	}
	awarded := make(map[int]struct{}, len(awardedTiers))
	for _, t := range awardedTiers {
		awarded[t] = struct{}{}
	}

	now := s.now()
	var issued []*model.Reward
	for _, tier := range s.tiers {
		if tier.Threshold > count {
			break
		}
		if _, ok := awarded[tier.Threshold]; ok {
			continue
		}

		rw := &model.Reward{
			ID:          uuid.New(),
			UserID:      referrerUserID,
			Type:        tier.Type,
			AmountCents: tier.AmountCents,
			Tier:        tier.Threshold,
			Source:      model.RewardSourceReferral,
			Status:      model.RewardStatusPending,
			Description: tier.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		created, err := s.repo.CreateTierReward(ctx, rw)
		if err != nil {
			return issued, fmt.Errorf("failed to create tier %d reward: %w", tier.Threshold, err)
		}
		if !created {
			continue
		}

		metrics.RewardsIssued.WithLabelValues(string(model.RewardSourceReferral)).Inc()
		logger.Logger().Info("tier reward issued",
			zap.Int64("user_id", referrerUserID),
			zap.Int("tier", tier.Threshold),
			zap.Int("verified_count", count))
		issued = append(issued, rw)
	}

	return issued, nil
}

// NextTier describes the first tier above count, nil once every tier is reached.
func (s *RewardService) NextTier(count int) *model.NextTier {
	for _, tier := range s.tiers {
		if tier.Threshold > count {
			return &model.NextTier{
				Threshold:   tier.Threshold,
				Remaining:   tier.Threshold - count,
				Type:        tier.Type,
				AmountCents: tier.AmountCents,
				Description: tier.Description,
			}
		}
	}
	return nil
}

func (s *RewardService) ListRewards(ctx context.Context, userID int64) ([]*model.Reward, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	rewards, err := s.repo.ListRewardsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return rewards, nil
}

func (s *RewardService) ApproveReward(ctx context.Context, rewardID uuid.UUID) (*model.Reward, error) {
	rw, err := s.repo.ApproveReward(ctx, rewardID, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrInvalidState):
			return nil, fmt.Errorf("%w: only pending rewards can be approved", ErrInvalidState)
		}
		return nil, fmt.Errorf("failed to approve reward: %w", err)
	}

	logger.Logger().Info("reward approved",
		zap.String("reward_id", rewardID.String()),
		zap.Int64("user_id", rw.UserID))

	return rw, nil
}

// ClaimReward pays out an approved reward. Repeating the call with the same
// idempotency key returns the original claim and changes nothing.
func (s *RewardService) ClaimReward(ctx context.Context, rewardID uuid.UUID, userID int64, idempotencyKey string) (*model.ClaimResult, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return nil, validationError("idempotency key is required")
	}
	if len(idempotencyKey) > maxIdempotencyKeyLen {
		return nil, validationError("idempotency key is too long")
	}

	res, err := s.repo.ClaimReward(ctx, rewardID, userID, idempotencyKey, s.now())
	if errors.Is(err, repository.ErrConflict) {
		// A concurrent request with the same key won the insert; reading
		// again returns its claim as a replay.
		res, err = s.repo.ClaimReward(ctx, rewardID, userID, idempotencyKey, s.now())
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			metrics.Claims.WithLabelValues("rejected").Inc()
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrNotOwner):
			metrics.Claims.WithLabelValues("rejected").Inc()
			return nil, ErrForbidden
		case errors.Is(err, repository.ErrInvalidState):
			metrics.Claims.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: reward is not approved for payout", ErrInvalidState)
		}
		metrics.Claims.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to claim reward: %w", err)
	}

	if res.Replayed {
		metrics.Claims.WithLabelValues("replayed").Inc()
	} else {
		metrics.Claims.WithLabelValues("created").Inc()
		logger.Logger().Info("reward claimed",
			zap.String("reward_id", rewardID.String()),
			zap.String("claim_id", res.Claim.ID.String()),
			zap.Int64("user_id", userID))
	}

	return res, nil
}
