package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"UD_referral_program/internal/model"

	"github.com/google/uuid"
)

var (
	ErrValidation   = errors.New("invalid request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
)

// RateLimitError names the window that was exceeded and when it resets.
// It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	Window  string
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s window, resets at %s", e.Window, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

type ReferralServiceI interface {
	GetOrCreateCode(ctx context.Context, userID int64) (*model.ReferralCode, error)
	ReferralLink(code string) string
	RecordClick(ctx context.Context, code, ip, userAgent string) error
	AttachReferral(ctx context.Context, refereeUserID int64, code, ip, userAgent string) (*model.Referral, error)
	CompleteReferral(ctx context.Context, in CompleteReferralInput) (*model.ReferralOutcome, error)
}

type RewardServiceI interface {
	ListRewards(ctx context.Context, userID int64) ([]*model.Reward, error)
	ClaimReward(ctx context.Context, rewardID uuid.UUID, userID int64, idempotencyKey string) (*model.ClaimResult, error)
	ApproveReward(ctx context.Context, rewardID uuid.UUID) (*model.Reward, error)
}

type LeaderboardServiceI interface {
	GetLeaderboard(ctx context.Context, period model.LeaderboardPeriod, userID int64) (*model.Leaderboard, error)
}

type SummaryServiceI interface {
	GetSummary(ctx context.Context, userID int64) (*model.Summary, error)
}

type JobRunnerI interface {
	RebuildLeaderboard(ctx context.Context) (*model.LeaderboardRebuild, error)
	ComputeMonthlyPrize(ctx context.Context) (*model.MonthlyPrizeResult, error)
	CleanupOldClicks(ctx context.Context) (*model.CleanupResult, error)
}

type ReferralRepository interface {
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	CreateReferralCode(ctx context.Context, userID int64, code string, now time.Time) (*model.ReferralCode, error)
	GetReferralCodeByUser(ctx context.Context, userID int64) (*model.ReferralCode, error)
	GetReferralCodeByCode(ctx context.Context, code string) (*model.ReferralCode, error)
	InsertClick(ctx context.Context, click *model.ReferralClick) error
	GetReferralByReferee(ctx context.Context, refereeUserID int64) (*model.Referral, error)
	AttachReferral(ctx context.Context, ref *model.Referral) (*model.Referral, error)
	SaveReferralOutcome(ctx context.Context, ref *model.Referral) (*model.Referral, bool, error)
	DeleteClicksBefore(ctx context.Context, cutoff time.Time) (int64, error)
	FraudRepository
}

type FraudRepository interface {
	CountClicksByFingerprint(ctx context.Context, ipHash, uaHash string, since time.Time) (int, error)
	CountSignupsByIPHash(ctx context.Context, ipHash string, since time.Time, excludeReferee int64) (int, error)
}

type RewardRepository interface {
	CountVerifiedReferrals(ctx context.Context, referrerUserID int64) (int, error)
	CreateTierReward(ctx context.Context, rw *model.Reward) (bool, error)
	ListAwardedTiers(ctx context.Context, userID int64) ([]int, error)
	ListRewardsByUser(ctx context.Context, userID int64) ([]*model.Reward, error)
	ApproveReward(ctx context.Context, rewardID uuid.UUID, now time.Time) (*model.Reward, error)
	ClaimReward(ctx context.Context, rewardID uuid.UUID, userID int64, idempotencyKey string, now time.Time) (*model.ClaimResult, error)
}

type LeaderboardRepository interface {
	CountVerifiedByReferrer(ctx context.Context, from, to time.Time, minCount int, limit uint64) ([]model.ReferrerCount, error)
	ReplaceLeaderboardWeek(ctx context.Context, weekID string, entries []model.LeaderboardWeekEntry) error
	GetLeaderboardWeek(ctx context.Context, weekID string, limit uint64) ([]model.LeaderboardWeekEntry, error)
	GetLeaderboardWeekEntry(ctx context.Context, weekID string, userID int64) (*model.LeaderboardWeekEntry, error)
	GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error)
}

type PrizeRepository interface {
	CountVerifiedByReferrer(ctx context.Context, from, to time.Time, minCount int, limit uint64) ([]model.ReferrerCount, error)
	GetMonthlyPrize(ctx context.Context, monthKey string) (*model.MonthlyPrize, error)
	AwardMonthlyPrize(ctx context.Context, prize *model.MonthlyPrize, rw *model.Reward) (*model.MonthlyPrize, bool, error)
}

type SummaryRepository interface {
	GetReferralCodeByUser(ctx context.Context, userID int64) (*model.ReferralCode, error)
	CountClicksByCode(ctx context.Context, code string) (int, error)
	CountVerifiedReferrals(ctx context.Context, referrerUserID int64) (int, error)
	CountVerifiedReferralsBetween(ctx context.Context, referrerUserID int64, from, to time.Time) (int, error)
	SumRewardCents(ctx context.Context, userID int64) (int64, error)
}

// Notifier delivers batch job reports to operators.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
