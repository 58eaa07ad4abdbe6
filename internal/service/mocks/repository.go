package mocks

import (
	"context"
	"time"

	"UD_referral_program/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockReferralRepository struct {
	mock.Mock
}

func (m *MockReferralRepository) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockReferralRepository) CreateReferralCode(ctx context.Context, userID int64, code string, now time.Time) (*model.ReferralCode, error) {
	args := m.Called(ctx, userID, code, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralCode), args.Error(1)
}

func (m *MockReferralRepository) GetReferralCodeByUser(ctx context.Context, userID int64) (*model.ReferralCode, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralCode), args.Error(1)
}

func (m *MockReferralRepository) GetReferralCodeByCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralCode), args.Error(1)
}

func (m *MockReferralRepository) InsertClick(ctx context.Context, click *model.ReferralClick) error {
	args := m.Called(ctx, click)
	return args.Error(0)
}

func (m *MockReferralRepository) GetReferralByReferee(ctx context.Context, refereeUserID int64) (*model.Referral, error) {
	args := m.Called(ctx, refereeUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Referral), args.Error(1)
}

func (m *MockReferralRepository) AttachReferral(ctx context.Context, ref *model.Referral) (*model.Referral, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Referral), args.Error(1)
}

func (m *MockReferralRepository) SaveReferralOutcome(ctx context.Context, ref *model.Referral) (*model.Referral, bool, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Referral), args.Bool(1), args.Error(2)
}

func (m *MockReferralRepository) DeleteClicksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReferralRepository) CountClicksByFingerprint(ctx context.Context, ipHash, uaHash string, since time.Time) (int, error) {
	args := m.Called(ctx, ipHash, uaHash, since)
	return args.Int(0), args.Error(1)
}

func (m *MockReferralRepository) CountSignupsByIPHash(ctx context.Context, ipHash string, since time.Time, excludeReferee int64) (int, error) {
	args := m.Called(ctx, ipHash, since, excludeReferee)
	return args.Int(0), args.Error(1)
}

type MockRewardRepository struct {
	mock.Mock
}

func (m *MockRewardRepository) CountVerifiedReferrals(ctx context.Context, referrerUserID int64) (int, error) {
	args := m.Called(ctx, referrerUserID)
	return args.Int(0), args.Error(1)
}

func (m *MockRewardRepository) CreateTierReward(ctx context.Context, rw *model.Reward) (bool, error) {
	args := m.Called(ctx, rw)
	return args.Bool(0), args.Error(1)
}

func (m *MockRewardRepository) ListAwardedTiers(ctx context.Context, userID int64) ([]int, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockRewardRepository) ListRewardsByUser(ctx context.Context, userID int64) ([]*model.Reward, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Reward), args.Error(1)
}

func (m *MockRewardRepository) ApproveReward(ctx context.Context, rewardID uuid.UUID, now time.Time) (*model.Reward, error) {
	args := m.Called(ctx, rewardID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reward), args.Error(1)
}

func (m *MockRewardRepository) ClaimReward(ctx context.Context, rewardID uuid.UUID, userID int64, idempotencyKey string, now time.Time) (*model.ClaimResult, error) {
	args := m.Called(ctx, rewardID, userID, idempotencyKey, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ClaimResult), args.Error(1)
}

type MockLeaderboardRepository struct {
	mock.Mock
}

func (m *MockLeaderboardRepository) CountVerifiedByReferrer(ctx context.Context, from, to time.Time, minCount int, limit uint64) ([]model.ReferrerCount, error) {
	args := m.Called(ctx, from, to, minCount, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ReferrerCount), args.Error(1)
}

func (m *MockLeaderboardRepository) ReplaceLeaderboardWeek(ctx context.Context, weekID string, entries []model.LeaderboardWeekEntry) error {
	args := m.Called(ctx, weekID, entries)
	return args.Error(0)
}

func (m *MockLeaderboardRepository) GetLeaderboardWeek(ctx context.Context, weekID string, limit uint64) ([]model.LeaderboardWeekEntry, error) {
	args := m.Called(ctx, weekID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LeaderboardWeekEntry), args.Error(1)
}

func (m *MockLeaderboardRepository) GetLeaderboardWeekEntry(ctx context.Context, weekID string, userID int64) (*model.LeaderboardWeekEntry, error) {
	args := m.Called(ctx, weekID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LeaderboardWeekEntry), args.Error(1)
}

func (m *MockLeaderboardRepository) GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]*model.User), args.Error(1)
}

type MockPrizeRepository struct {
	mock.Mock
}

func (m *MockPrizeRepository) CountVerifiedByReferrer(ctx context.Context, from, to time.Time, minCount int, limit uint64) ([]model.ReferrerCount, error) {
	args := m.Called(ctx, from, to, minCount, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ReferrerCount), args.Error(1)
}

func (m *MockPrizeRepository) GetMonthlyPrize(ctx context.Context, monthKey string) (*model.MonthlyPrize, error) {
	args := m.Called(ctx, monthKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MonthlyPrize), args.Error(1)
}

func (m *MockPrizeRepository) AwardMonthlyPrize(ctx context.Context, prize *model.MonthlyPrize, rw *model.Reward) (*model.MonthlyPrize, bool, error) {
	args := m.Called(ctx, prize, rw)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.MonthlyPrize), args.Bool(1), args.Error(2)
}

type MockSummaryRepository struct {
	mock.Mock
}

func (m *MockSummaryRepository) GetReferralCodeByUser(ctx context.Context, userID int64) (*model.ReferralCode, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralCode), args.Error(1)
}

func (m *MockSummaryRepository) CountClicksByCode(ctx context.Context, code string) (int, error) {
	args := m.Called(ctx, code)
	return args.Int(0), args.Error(1)
}

func (m *MockSummaryRepository) CountVerifiedReferrals(ctx context.Context, referrerUserID int64) (int, error) {
	args := m.Called(ctx, referrerUserID)
	return args.Int(0), args.Error(1)
}

func (m *MockSummaryRepository) CountVerifiedReferralsBetween(ctx context.Context, referrerUserID int64, from, to time.Time) (int, error) {
	args := m.Called(ctx, referrerUserID, from, to)
	return args.Int(0), args.Error(1)
}

func (m *MockSummaryRepository) SumRewardCents(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}
