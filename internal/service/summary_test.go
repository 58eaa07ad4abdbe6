package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/repository"
	"UD_referral_program/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSummaryService(repo SummaryRepository) *SummaryService {
	cfg := testProgramConfig()
	links := NewReferralService(nil, nil, nil, Limiters{}, cfg)
	tiers := NewRewardService(nil, cfg.Tiers)

	svc := NewSummaryService(repo, links, tiers)
	svc.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestSummaryService_GetSummary(t *testing.T) {
	weekFrom := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	weekTo := weekFrom.AddDate(0, 0, 7)

	repo := &mocks.MockSummaryRepository{}
	repo.On("GetReferralCodeByUser", mock.Anything, int64(7)).Return(&model.ReferralCode{UserID: 7, Code: "ABCD2345"}, nil)
	repo.On("CountClicksByCode", mock.Anything, "ABCD2345").Return(31, nil)
	repo.On("CountVerifiedReferrals", mock.Anything, int64(7)).Return(12, nil)
	repo.On("SumRewardCents", mock.Anything, int64(7)).Return(int64(3500), nil)
	repo.On("CountVerifiedReferralsBetween", mock.Anything, int64(7), weekFrom, weekTo).Return(2, nil)

	summary, err := newSummaryService(repo).GetSummary(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 31, summary.Clicks)
	assert.Equal(t, 12, summary.VerifiedCount)
	assert.Equal(t, int64(3500), summary.EarnedCents)
	assert.Equal(t, 2, summary.ThisWeekPoints)
	assert.Equal(t, "ABCD2345", summary.ReferralCode)
	assert.Equal(t, "https://app.example.com/join?ref=ABCD2345", summary.ReferralLink)
	require.NotNil(t, summary.NextTier)
	assert.Equal(t, 25, summary.NextTier.Threshold)
	assert.Equal(t, 13, summary.NextTier.Remaining)
	repo.AssertExpectations(t)
}

func TestSummaryService_GetSummary_DegradesToZero(t *testing.T) {
	down := errors.New("connection refused")

	repo := &mocks.MockSummaryRepository{}
	repo.On("GetReferralCodeByUser", mock.Anything, int64(7)).Return(nil, down)
	repo.On("CountVerifiedReferrals", mock.Anything, int64(7)).Return(0, down)
	repo.On("SumRewardCents", mock.Anything, int64(7)).Return(int64(0), down)
	repo.On("CountVerifiedReferralsBetween", mock.Anything, int64(7), mock.Anything, mock.Anything).Return(0, down)

	summary, err := newSummaryService(repo).GetSummary(context.Background(), 7)
	require.NoError(t, err)

	assert.Zero(t, summary.Clicks)
	assert.Zero(t, summary.VerifiedCount)
	assert.Zero(t, summary.EarnedCents)
	assert.Empty(t, summary.ReferralCode)
	require.NotNil(t, summary.NextTier)
	assert.Equal(t, 5, summary.NextTier.Threshold)
}

func TestSummaryService_GetSummary_NoCodeYet(t *testing.T) {
	repo := &mocks.MockSummaryRepository{}
	repo.On("GetReferralCodeByUser", mock.Anything, int64(7)).Return(nil, repository.ErrNotFound)
	repo.On("CountVerifiedReferrals", mock.Anything, int64(7)).Return(0, nil)
	repo.On("SumRewardCents", mock.Anything, int64(7)).Return(int64(0), nil)
	repo.On("CountVerifiedReferralsBetween", mock.Anything, int64(7), mock.Anything, mock.Anything).Return(0, nil)

	summary, err := newSummaryService(repo).GetSummary(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, summary.ReferralLink)
	repo.AssertNotCalled(t, "CountClicksByCode", mock.Anything, mock.Anything)

	_, err = newSummaryService(repo).GetSummary(context.Background(), 0)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
