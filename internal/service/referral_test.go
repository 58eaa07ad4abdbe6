package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/ratelimit"
	"UD_referral_program/internal/repository"
	"UD_referral_program/internal/service/mocks"
	"UD_referral_program/pkg/fingerprint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAwarder struct {
	mock.Mock
}

func (m *mockAwarder) AwardTiers(ctx context.Context, referrerUserID int64) ([]*model.Reward, error) {
	args := m.Called(ctx, referrerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Reward), args.Error(1)
}

type referralFixture struct {
	svc     *ReferralService
	repo    *mocks.MockReferralRepository
	awarder *mockAwarder
	hasher  *fingerprint.Hasher
	now     *time.Time
}

func newReferralFixture(t *testing.T, cfg ProgramConfig) *referralFixture {
	t.Helper()

	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	hasher, err := fingerprint.NewHasher(cfg.Salt)
	require.NoError(t, err)

	clicks, err := ratelimit.NewMemoryLimiter(ratelimit.Window{Name: "click", Limit: cfg.ClickLimit, Period: cfg.ClickWindow})
	require.NoError(t, err)
	completions, err := ratelimit.NewMemoryLimiter(ratelimit.Window{Name: "complete", Limit: cfg.CompletionLimit, Period: cfg.CompletionWindow})
	require.NoError(t, err)

	repo := &mocks.MockReferralRepository{}
	awarder := &mockAwarder{}

	svc := NewReferralService(repo, awarder, hasher, Limiters{
		Click:      clicks.WithClock(clock),
		Completion: completions.WithClock(clock),
	}, cfg)
	svc.now = clock
	svc.fraud.now = clock

	return &referralFixture{svc: svc, repo: repo, awarder: awarder, hasher: hasher, now: &now}
}

func TestReferralService_RecordClick_RateLimit(t *testing.T) {
	f := newReferralFixture(t, testProgramConfig())
	f.repo.On("InsertClick", mock.Anything, mock.Anything).Return(nil)

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		require.NoError(t, f.svc.RecordClick(ctx, "abcd2345", "203.0.113.7", "Mozilla/5.0"))
	}

	err := f.svc.RecordClick(ctx, "ABCD2345", "203.0.113.7", "Mozilla/5.0")
	require.ErrorIs(t, err, ErrRateLimited)

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, "click", rl.Window)
	assert.Equal(t, f.now.Add(time.Hour), rl.ResetAt)

	// Other addresses have their own window.
	assert.NoError(t, f.svc.RecordClick(ctx, "ABCD2345", "203.0.113.8", "Mozilla/5.0"))

	*f.now = f.now.Add(time.Hour)
	assert.NoError(t, f.svc.RecordClick(ctx, "ABCD2345", "203.0.113.7", "Mozilla/5.0"))

	f.repo.AssertNumberOfCalls(t, "InsertClick", 62)
}

func TestReferralService_RecordClick_StoresHashesOnly(t *testing.T) {
	f := newReferralFixture(t, testProgramConfig())
	f.repo.On("InsertClick", mock.Anything, mock.MatchedBy(func(c *model.ReferralClick) bool {
		return c.Code == "ABCD2345" &&
			c.IPHash == f.hasher.Hash("203.0.113.7") &&
			c.UAHash == f.hasher.Hash("Mozilla/5.0")
	})).Return(nil).Once()

	require.NoError(t, f.svc.RecordClick(context.Background(), " abcd2345 ", "203.0.113.7", "Mozilla/5.0"))
	f.repo.AssertExpectations(t)

	assert.ErrorIs(t, f.svc.RecordClick(context.Background(), "", "203.0.113.7", "ua"), ErrValidation)
}

func TestReferralService_CompleteReferral(t *testing.T) {
	const (
		referrer = int64(1)
		referee  = int64(2)
	)
	code := &model.ReferralCode{UserID: referrer, Code: "ABCD2345"}
	rejectedReason := model.RejectDisposableEmail

	tests := []struct {
		name           string
		referee        int64
		code           string
		mockSetup      func(f *referralFixture)
		expectedStatus model.ReferralStatus
		expectedReason string
		expectedError  error
	}{
		{
			name:    "verified referral awards tiers",
			referee: referee,
			code:    "abcd2345",
			mockSetup: func(f *referralFixture) {
				f.repo.On("GetReferralByReferee", mock.Anything, referee).Return(nil, repository.ErrNotFound)
				f.repo.On("GetReferralCodeByCode", mock.Anything, "ABCD2345").Return(code, nil)
				f.repo.On("GetUserByID", mock.Anything, referee).Return(&model.User{ID: referee, Email: "bob@gmail.com"}, nil)
				f.repo.On("CountClicksByFingerprint", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
				f.repo.On("CountSignupsByIPHash", mock.Anything, mock.Anything, mock.Anything, referee).Return(0, nil)
				f.repo.On("SaveReferralOutcome", mock.Anything, mock.MatchedBy(func(r *model.Referral) bool {
					return r.Status == model.ReferralStatusVerified && r.VerifiedAt != nil && r.ReferrerUserID == referrer
				})).Return(&model.Referral{ReferrerUserID: referrer, RefereeUserID: referee, Status: model.ReferralStatusVerified}, true, nil)
				f.awarder.On("AwardTiers", mock.Anything, referrer).Return([]*model.Reward{}, nil).Once()
			},
			expectedStatus: model.ReferralStatusVerified,
		},
		{
			name:    "self referral is rejected without reward",
			referee: referrer,
			code:    "ABCD2345",
			mockSetup: func(f *referralFixture) {
				f.repo.On("GetReferralByReferee", mock.Anything, referrer).Return(nil, repository.ErrNotFound)
				f.repo.On("GetReferralCodeByCode", mock.Anything, "ABCD2345").Return(code, nil)
				f.repo.On("GetUserByID", mock.Anything, referrer).Return(&model.User{ID: referrer, Email: "al@gmail.com"}, nil)
				f.repo.On("SaveReferralOutcome", mock.Anything, mock.MatchedBy(func(r *model.Referral) bool {
					return r.Status == model.ReferralStatusRejected && *r.Reason == model.RejectSelfReferral
				})).Return(&model.Referral{
					ReferrerUserID: referrer,
					RefereeUserID:  referrer,
					Status:         model.ReferralStatusRejected,
					Reason:         strPtr(model.RejectSelfReferral),
				}, true, nil)
			},
			expectedStatus: model.ReferralStatusRejected,
			expectedReason: model.RejectSelfReferral,
		},
		{
			name:    "decided referral returns recorded outcome",
			referee: referee,
			code:    "ZZZZ2345",
			mockSetup: func(f *referralFixture) {
				f.repo.On("GetReferralByReferee", mock.Anything, referee).Return(&model.Referral{
					Status: model.ReferralStatusRejected,
					Reason: &rejectedReason,
				}, nil)
			},
			expectedStatus: model.ReferralStatusRejected,
			expectedReason: model.RejectDisposableEmail,
		},
		{
			name:    "lost race keeps the stored outcome",
			referee: referee,
			code:    "ABCD2345",
			mockSetup: func(f *referralFixture) {
				f.repo.On("GetReferralByReferee", mock.Anything, referee).Return(nil, repository.ErrNotFound)
				f.repo.On("GetReferralCodeByCode", mock.Anything, "ABCD2345").Return(code, nil)
				f.repo.On("GetUserByID", mock.Anything, referee).Return(&model.User{ID: referee, Email: "bob@gmail.com"}, nil)
				f.repo.On("CountClicksByFingerprint", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
				f.repo.On("CountSignupsByIPHash", mock.Anything, mock.Anything, mock.Anything, referee).Return(0, nil)
				f.repo.On("SaveReferralOutcome", mock.Anything, mock.Anything).
					Return(&model.Referral{Status: model.ReferralStatusVerified}, false, nil)
			},
			expectedStatus: model.ReferralStatusVerified,
		},
		{
			name:    "award failure does not undo the referral",
			referee: referee,
			code:    "ABCD2345",
			mockSetup: func(f *referralFixture) {
				f.repo.On("GetReferralByReferee", mock.Anything, referee).Return(nil, repository.ErrNotFound)
				f.repo.On("GetReferralCodeByCode", mock.Anything, "ABCD2345").Return(code, nil)
				f.repo.On("GetUserByID", mock.Anything, referee).Return(&model.User{ID: referee, Email: "bob@gmail.com"}, nil)
				f.repo.On("CountClicksByFingerprint", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
				f.repo.On("CountSignupsByIPHash", mock.Anything, mock.Anything, mock.Anything, referee).Return(0, nil)
				f.repo.On("SaveReferralOutcome", mock.Anything, mock.Anything).
					Return(&model.Referral{ReferrerUserID: referrer, Status: model.ReferralStatusVerified}, true, nil)
				f.awarder.On("AwardTiers", mock.Anything, referrer).Return(nil, errors.New("db down")).Once()
			},
			expectedStatus: model.ReferralStatusVerified,
		},
		{
			name:    "unknown code",
			referee: referee,
			code:    "NOPE2345",
			mockSetup: func(f *referralFixture) {
				f.repo.On("GetReferralByReferee", mock.Anything, referee).Return(nil, repository.ErrNotFound)
				f.repo.On("GetReferralCodeByCode", mock.Anything, "NOPE2345").Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrNotFound,
		},
		{
			name:          "anonymous caller",
			referee:       0,
			code:          "ABCD2345",
			mockSetup:     func(f *referralFixture) {},
			expectedError: ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReferralFixture(t, testProgramConfig())
			tt.mockSetup(f)

			out, err := f.svc.CompleteReferral(context.Background(), CompleteReferralInput{
				RefereeUserID: tt.referee,
				Code:          tt.code,
				IP:            "203.0.113.7",
				UserAgent:     "Mozilla/5.0",
			})
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, out)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedStatus, out.Status)
				if tt.expectedReason == "" {
					assert.Nil(t, out.Reason)
				} else {
					require.NotNil(t, out.Reason)
					assert.Equal(t, tt.expectedReason, *out.Reason)
				}
			}

			f.repo.AssertExpectations(t)
			f.awarder.AssertExpectations(t)
		})
	}
}

func TestReferralService_CompleteReferral_GlobalRateLimit(t *testing.T) {
	cfg := testProgramConfig()
	cfg.CompletionLimit = 2
	f := newReferralFixture(t, cfg)

	existing := &model.Referral{Status: model.ReferralStatusVerified}
	f.repo.On("GetReferralByReferee", mock.Anything, mock.Anything).Return(existing, nil)

	ctx := context.Background()
	for userID := int64(10); userID < 12; userID++ {
		_, err := f.svc.CompleteReferral(ctx, CompleteReferralInput{RefereeUserID: userID, Code: "ABCD2345"})
		require.NoError(t, err)
	}

	_, err := f.svc.CompleteReferral(ctx, CompleteReferralInput{RefereeUserID: 12, Code: "ABCD2345"})
	assert.ErrorIs(t, err, ErrRateLimited)

	*f.now = f.now.Add(time.Minute)
	_, err = f.svc.CompleteReferral(ctx, CompleteReferralInput{RefereeUserID: 12, Code: "ABCD2345"})
	assert.NoError(t, err)
}

func TestReferralService_GetOrCreateCode(t *testing.T) {
	f := newReferralFixture(t, testProgramConfig())

	codes := []string{"TAKEN234", "FRESH234"}
	f.svc.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	f.repo.On("GetReferralCodeByUser", mock.Anything, int64(5)).Return(nil, repository.ErrNotFound).Once()
	f.repo.On("CreateReferralCode", mock.Anything, int64(5), "TAKEN234", *f.now).Return(nil, repository.ErrConflict).Once()
	f.repo.On("CreateReferralCode", mock.Anything, int64(5), "FRESH234", *f.now).
		Return(&model.ReferralCode{UserID: 5, Code: "FRESH234"}, nil).Once()

	rc, err := f.svc.GetOrCreateCode(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "FRESH234", rc.Code)
	f.repo.AssertExpectations(t)

	assert.Equal(t, "https://app.example.com/join?ref=FRESH234", f.svc.ReferralLink(rc.Code))
}

func TestReferralService_GeneratedCodeAlphabet(t *testing.T) {
	f := newReferralFixture(t, testProgramConfig())

	for i := 0; i < 50; i++ {
		code, err := f.svc.newCode()
		require.NoError(t, err)
		assert.Len(t, code, codeLength)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
	}
}

func TestReferralService_AttachReferral(t *testing.T) {
	f := newReferralFixture(t, testProgramConfig())
	f.repo.On("GetReferralCodeByCode", mock.Anything, "ABCD2345").
		Return(&model.ReferralCode{UserID: 1, Code: "ABCD2345"}, nil)
	f.repo.On("GetReferralCodeByCode", mock.Anything, "NOPE2345").Return(nil, repository.ErrNotFound)
	f.repo.On("AttachReferral", mock.Anything, mock.MatchedBy(func(r *model.Referral) bool {
		return r.ReferrerUserID == 1 &&
			r.RefereeUserID == 2 &&
			r.Status == model.ReferralStatusClicked &&
			r.IPHash == f.hasher.Hash("203.0.113.7")
	})).Return(&model.Referral{ReferrerUserID: 1, RefereeUserID: 2, Status: model.ReferralStatusClicked}, nil).Once()

	ref, err := f.svc.AttachReferral(context.Background(), 2, "abcd2345", "203.0.113.7", "Mozilla/5.0")
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusClicked, ref.Status)

	_, err = f.svc.AttachReferral(context.Background(), 2, "NOPE2345", "203.0.113.7", "Mozilla/5.0")
	assert.ErrorIs(t, err, ErrNotFound)

	f.repo.AssertExpectations(t)
}

func TestReferralService_CleanupOldClicks(t *testing.T) {
	f := newReferralFixture(t, testProgramConfig())
	cutoff := f.now.Add(-90 * 24 * time.Hour)
	f.repo.On("DeleteClicksBefore", mock.Anything, cutoff).Return(int64(42), nil).Once()

	res, err := f.svc.CleanupOldClicks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Deleted)
	assert.Equal(t, cutoff, res.Cutoff)
}

func strPtr(s string) *string {
	return &s
}
