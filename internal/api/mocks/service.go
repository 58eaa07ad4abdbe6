package mocks

import (
	"context"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockReferralService struct {
	mock.Mock
}

func (m *MockReferralService) GetOrCreateCode(ctx context.Context, userID int64) (*model.ReferralCode, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralCode), args.Error(1)
}

func (m *MockReferralService) ReferralLink(code string) string {
	args := m.Called(code)
	return args.String(0)
}

func (m *MockReferralService) RecordClick(ctx context.Context, code, ip, userAgent string) error {
	args := m.Called(ctx, code, ip, userAgent)
	return args.Error(0)
}

func (m *MockReferralService) AttachReferral(ctx context.Context, refereeUserID int64, code, ip, userAgent string) (*model.Referral, error) {
	args := m.Called(ctx, refereeUserID, code, ip, userAgent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Referral), args.Error(1)
}

func (m *MockReferralService) CompleteReferral(ctx context.Context, in service.CompleteReferralInput) (*model.ReferralOutcome, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralOutcome), args.Error(1)
}

type MockSummaryService struct {
	mock.Mock
}

func (m *MockSummaryService) GetSummary(ctx context.Context, userID int64) (*model.Summary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Summary), args.Error(1)
}

type MockRewardService struct {
	mock.Mock
}

func (m *MockRewardService) ListRewards(ctx context.Context, userID int64) ([]*model.Reward, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Reward), args.Error(1)
}

func (m *MockRewardService) ClaimReward(ctx context.Context, rewardID uuid.UUID, userID int64, idempotencyKey string) (*model.ClaimResult, error) {
	args := m.Called(ctx, rewardID, userID, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ClaimResult), args.Error(1)
}

func (m *MockRewardService) ApproveReward(ctx context.Context, rewardID uuid.UUID) (*model.Reward, error) {
	args := m.Called(ctx, rewardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reward), args.Error(1)
}

type MockLeaderboardService struct {
	mock.Mock
}

func (m *MockLeaderboardService) GetLeaderboard(ctx context.Context, period model.LeaderboardPeriod, userID int64) (*model.Leaderboard, error) {
	args := m.Called(ctx, period, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Leaderboard), args.Error(1)
}

type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) RebuildLeaderboard(ctx context.Context) (*model.LeaderboardRebuild, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LeaderboardRebuild), args.Error(1)
}

func (m *MockJobRunner) ComputeMonthlyPrize(ctx context.Context) (*model.MonthlyPrizeResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MonthlyPrizeResult), args.Error(1)
}

func (m *MockJobRunner) CleanupOldClicks(ctx context.Context) (*model.CleanupResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CleanupResult), args.Error(1)
}
