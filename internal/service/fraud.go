package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/pkg/fingerprint"
)

var defaultDisposableDomains = []string{
	"10minutemail.com",
	"burnermail.io",
	"discard.email",
	"dispostable.com",
	"emailondeck.com",
	"fakeinbox.com",
	"getnada.com",
	"guerrillamail.com",
	"maildrop.cc",
	"mailinator.com",
	"mintemail.com",
	"mohmal.com",
	"sharklasers.com",
	"spamgourmet.com",
	"temp-mail.org",
	"tempmail.com",
	"tempr.email",
	"throwawaymail.com",
	"trashmail.com",
	"yopmail.com",
}

type FraudInput struct {
	ReferrerUserID int64
	RefereeUserID  int64
	RefereeEmail   string
	Fingerprint    fingerprint.Fingerprint
}

// FraudChecker runs the referral fraud rules in order and stops at the first
// one that fails.
type FraudChecker struct {
	repo       FraudRepository
	disposable map[string]struct{}

	deviceWindow time.Duration
	ipCap        int
	ipWindow     time.Duration
	now          func() time.Time
}

func NewFraudChecker(repo FraudRepository, cfg ProgramConfig) *FraudChecker {
	disposable := make(map[string]struct{}, len(defaultDisposableDomains)+len(cfg.DisposableDomains))
	for _, d := range defaultDisposableDomains {
		disposable[d] = struct{}{}
	}
	for _, d := range cfg.DisposableDomains {
		disposable[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}

	return &FraudChecker{
		repo:         repo,
		disposable:   disposable,
		deviceWindow: cfg.DuplicateDeviceWindow,
		ipCap:        cfg.IPSignupCap,
		ipWindow:     cfg.IPSignupWindow,
		now:          time.Now,
	}
}

// Check returns the rejection reason, or "" when the referral passes.
func (f *FraudChecker) Check(ctx context.Context, in FraudInput) (string, error) {
	if in.ReferrerUserID == in.RefereeUserID {
		return model.RejectSelfReferral, nil
	}

	if f.IsDisposable(in.RefereeEmail) {
		return model.RejectDisposableEmail, nil
	}

	now := f.now()

	// Either dimension matching is enough.
	clicks, err := f.repo.CountClicksByFingerprint(ctx, in.Fingerprint.IPHash, in.Fingerprint.UAHash, now.Add(-f.deviceWindow))
	if err != nil {
		return "", fmt.Errorf("failed to check duplicate device: %w", err)
	}
	if clicks > 0 {
		return model.RejectDuplicateDevice, nil
	}

	signups, err := f.repo.CountSignupsByIPHash(ctx, in.Fingerprint.IPHash, now.Add(-f.ipWindow), in.RefereeUserID)
	if err != nil {
		return "", fmt.Errorf("failed to check ip signups: %w", err)
	}
	if signups >= f.ipCap {
		return model.RejectIPLimitExceeded, nil
	}

	return "", nil
}

// IsDisposable reports whether the email's domain, or any parent domain of
// it, is a known throwaway provider.
func (f *FraudChecker) IsDisposable(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}

	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	for domain != "" {
		if _, ok := f.disposable[domain]; ok {
			return true
		}
		dot := strings.Index(domain, ".")
		if dot < 0 {
			break
		}
		domain = domain[dot+1:]
	}

	return false
}
