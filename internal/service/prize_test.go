package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/repository"
	"UD_referral_program/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPreviousMonth(t *testing.T) {
	key, from, to := PreviousMonth(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-09", key)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), to)

	key, from, _ = PreviousMonth(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-12", key)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), from)
}

func TestSelectWinner(t *testing.T) {
	early := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name               string
		counts             []model.ReferrerCount
		expectedWinner     int64
		expectedQualifying int
	}{
		{
			name:               "nobody qualifies",
			counts:             []model.ReferrerCount{{UserID: 1, Count: 99, FirstVerifiedAt: early}},
			expectedWinner:     0,
			expectedQualifying: 0,
		},
		{
			name: "highest count wins",
			counts: []model.ReferrerCount{
				{UserID: 1, Count: 120, FirstVerifiedAt: early},
				{UserID: 2, Count: 150, FirstVerifiedAt: late},
			},
			expectedWinner:     2,
			expectedQualifying: 2,
		},
		{
			name: "tie goes to earliest referral",
			counts: []model.ReferrerCount{
				{UserID: 1, Count: 120, FirstVerifiedAt: late},
				{UserID: 2, Count: 120, FirstVerifiedAt: early},
			},
			expectedWinner:     2,
			expectedQualifying: 2,
		},
		{
			name: "full tie goes to lowest user id",
			counts: []model.ReferrerCount{
				{UserID: 9, Count: 120, FirstVerifiedAt: early},
				{UserID: 4, Count: 120, FirstVerifiedAt: early},
			},
			expectedWinner:     4,
			expectedQualifying: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, qualifying := SelectWinner(tt.counts, 100)
			assert.Equal(t, tt.expectedQualifying, qualifying)
			if tt.expectedWinner == 0 {
				assert.Nil(t, winner)
				return
			}
			require.NotNil(t, winner)
			assert.Equal(t, tt.expectedWinner, winner.UserID)
		})
	}
}

func TestPrizeService_ComputeMonthlyPrize(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 5, 0, 0, time.UTC)
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	stored := &model.MonthlyPrize{MonthKey: "2026-09", WinnerUserID: 2, ReferralsCount: 130, RewardID: uuid.New(), AwardedAt: now}

	repo := &mocks.MockPrizeRepository{}
	repo.On("GetMonthlyPrize", mock.Anything, "2026-09").Return(nil, repository.ErrNotFound).Once()
	repo.On("CountVerifiedByReferrer", mock.Anything, from, to, 100, uint64(0)).Return([]model.ReferrerCount{
		{UserID: 1, Count: 130, FirstVerifiedAt: from.Add(48 * time.Hour)},
		{UserID: 2, Count: 130, FirstVerifiedAt: from.Add(24 * time.Hour)},
	}, nil).Once()
	repo.On("AwardMonthlyPrize", mock.Anything,
		mock.MatchedBy(func(p *model.MonthlyPrize) bool {
			return p.MonthKey == "2026-09" && p.WinnerUserID == 2 && p.ReferralsCount == 130
		}),
		mock.MatchedBy(func(rw *model.Reward) bool {
			return rw.UserID == 2 &&
				rw.Type == model.RewardTypeDevice &&
				rw.Source == model.RewardSourceMonthlyPrize &&
				rw.Status == model.RewardStatusApproved
		}),
	).Return(stored, true, nil).Once()
	repo.On("GetMonthlyPrize", mock.Anything, "2026-09").Return(stored, nil).Once()

	svc := NewPrizeService(repo, DefaultProgramConfig().MonthlyPrize)
	svc.now = func() time.Time { return now }

	first, err := svc.ComputeMonthlyPrize(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, 2, first.Qualifying)
	assert.Equal(t, stored, first.Prize)

	second, err := svc.ComputeMonthlyPrize(context.Background())
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, stored, second.Prize)

	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "AwardMonthlyPrize", 1)
}

func TestPrizeService_ComputeMonthlyPrize_NoQualifier(t *testing.T) {
	repo := &mocks.MockPrizeRepository{}
	repo.On("GetMonthlyPrize", mock.Anything, mock.Anything).Return(nil, repository.ErrNotFound)
	repo.On("CountVerifiedByReferrer", mock.Anything, mock.Anything, mock.Anything, 100, uint64(0)).
		Return([]model.ReferrerCount{}, nil)

	res, err := NewPrizeService(repo, DefaultProgramConfig().MonthlyPrize).ComputeMonthlyPrize(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Prize)
	assert.False(t, res.Created)
	repo.AssertNotCalled(t, "AwardMonthlyPrize", mock.Anything, mock.Anything, mock.Anything)
}

func TestPrizeService_ComputeMonthlyPrize_StoreFailure(t *testing.T) {
	repo := &mocks.MockPrizeRepository{}
	repo.On("GetMonthlyPrize", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := NewPrizeService(repo, DefaultProgramConfig().MonthlyPrize).ComputeMonthlyPrize(context.Background())
	assert.Error(t, err)
}
