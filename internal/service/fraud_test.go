package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/service/mocks"
	"UD_referral_program/pkg/fingerprint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testProgramConfig() ProgramConfig {
	cfg := DefaultProgramConfig()
	cfg.Salt = "0123456789abcdef-test"
	cfg.LinkBaseURL = "https://app.example.com/join"
	return cfg
}

func TestFraudChecker_Check(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	fp := fingerprint.Fingerprint{IPHash: "ip-hash", UAHash: "ua-hash"}
	deviceSince := now.Add(-7 * 24 * time.Hour)
	ipSince := now.Add(-24 * time.Hour)

	tests := []struct {
		name           string
		input          FraudInput
		mockSetup      func(m *mocks.MockReferralRepository)
		expectedReason string
		expectedError  bool
	}{
		{
			name:           "self referral",
			input:          FraudInput{ReferrerUserID: 1, RefereeUserID: 1, RefereeEmail: "a@gmail.com", Fingerprint: fp},
			mockSetup:      func(m *mocks.MockReferralRepository) {},
			expectedReason: model.RejectSelfReferral,
		},
		{
			name:           "disposable email",
			input:          FraudInput{ReferrerUserID: 1, RefereeUserID: 2, RefereeEmail: "bob@Mailinator.com", Fingerprint: fp},
			mockSetup:      func(m *mocks.MockReferralRepository) {},
			expectedReason: model.RejectDisposableEmail,
		},
		{
			name:  "duplicate device",
			input: FraudInput{ReferrerUserID: 1, RefereeUserID: 2, RefereeEmail: "bob@gmail.com", Fingerprint: fp},
			mockSetup: func(m *mocks.MockReferralRepository) {
				m.On("CountClicksByFingerprint", mock.Anything, "ip-hash", "ua-hash", deviceSince).Return(2, nil)
			},
			expectedReason: model.RejectDuplicateDevice,
		},
		{
			name:  "ip cap reached",
			input: FraudInput{ReferrerUserID: 1, RefereeUserID: 2, RefereeEmail: "bob@gmail.com", Fingerprint: fp},
			mockSetup: func(m *mocks.MockReferralRepository) {
				m.On("CountClicksByFingerprint", mock.Anything, "ip-hash", "ua-hash", deviceSince).Return(0, nil)
				m.On("CountSignupsByIPHash", mock.Anything, "ip-hash", ipSince, int64(2)).Return(3, nil)
			},
			expectedReason: model.RejectIPLimitExceeded,
		},
		{
			name:  "under ip cap passes",
			input: FraudInput{ReferrerUserID: 1, RefereeUserID: 2, RefereeEmail: "bob@gmail.com", Fingerprint: fp},
			mockSetup: func(m *mocks.MockReferralRepository) {
				m.On("CountClicksByFingerprint", mock.Anything, "ip-hash", "ua-hash", deviceSince).Return(0, nil)
				m.On("CountSignupsByIPHash", mock.Anything, "ip-hash", ipSince, int64(2)).Return(2, nil)
			},
			expectedReason: "",
		},
		{
			name:  "store failure",
			input: FraudInput{ReferrerUserID: 1, RefereeUserID: 2, RefereeEmail: "bob@gmail.com", Fingerprint: fp},
			mockSetup: func(m *mocks.MockReferralRepository) {
				m.On("CountClicksByFingerprint", mock.Anything, "ip-hash", "ua-hash", deviceSince).Return(0, errors.New("db down"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockReferralRepository{}
			tt.mockSetup(repo)

			checker := NewFraudChecker(repo, testProgramConfig())
			checker.now = func() time.Time { return now }

			reason, err := checker.Check(context.Background(), tt.input)
			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedReason, reason)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestFraudChecker_IsDisposable(t *testing.T) {
	cfg := testProgramConfig()
	cfg.DisposableDomains = []string{"Burner.Example"}
	checker := NewFraudChecker(&mocks.MockReferralRepository{}, cfg)

	assert.True(t, checker.IsDisposable("x@yopmail.com"))
	assert.True(t, checker.IsDisposable("x@eu.mailinator.com"))
	assert.True(t, checker.IsDisposable("x@burner.example"))
	assert.False(t, checker.IsDisposable("x@gmail.com"))
	assert.False(t, checker.IsDisposable("not-an-email"))
}
