package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/ratelimit"
	"UD_referral_program/internal/repository"
	"UD_referral_program/pkg/fingerprint"
	"UD_referral_program/pkg/logger"
	"UD_referral_program/pkg/metrics"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	codeAlphabet    = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength      = 8
	maxCodeAttempts = 5
	maxCodeInputLen = 64

	completionLimitKey = "global"
)

// TierAwarder is the part of the reward engine the validator needs.
type TierAwarder interface {
	AwardTiers(ctx context.Context, referrerUserID int64) ([]*model.Reward, error)
}

type Limiters struct {
	Click      ratelimit.Limiter
	Completion ratelimit.Limiter
}

type ReferralService struct {
	repo     ReferralRepository
	tiers    TierAwarder
	hasher   *fingerprint.Hasher
	fraud    *FraudChecker
	limiters Limiters

	linkBase  string
	retention time.Duration

	newCode func() (string, error)
	now     func() time.Time
}

func NewReferralService(repo ReferralRepository, tiers TierAwarder, hasher *fingerprint.Hasher, limiters Limiters, cfg ProgramConfig) *ReferralService {
	return &ReferralService{
		repo:      repo,
		tiers:     tiers,
		hasher:    hasher,
		fraud:     NewFraudChecker(repo, cfg),
		limiters:  limiters,
		linkBase:  cfg.LinkBaseURL,
		retention: cfg.ClickRetention,
		newCode: func() (string, error) {
			return gonanoid.Generate(codeAlphabet, codeLength)
		},
		now: time.Now,
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateCode(code string) error {
	if code == "" {
		return validationError("referral code is required")
	}
	if len(code) > maxCodeInputLen {
		return validationError("referral code is too long")
	}
	return nil
}

// GetOrCreateCode returns the user's referral code, creating it on first use.
func (s *ReferralService) GetOrCreateCode(ctx context.Context, userID int64) (*model.ReferralCode, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	existing, err := s.repo.GetReferralCodeByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get referral code: %w", err)
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate referral code: %w", err)
		}

		rc, err := s.repo.CreateReferralCode(ctx, userID, code, s.now())
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("failed to create referral code: %w", err)
		}

		logger.Logger().Warn("referral code collision, retrying",
			zap.Int64("user_id", userID),
			zap.Int("attempt", attempt))
	}

	return nil, fmt.Errorf("failed to create a unique referral code after %d attempts", maxCodeAttempts)
}

func (s *ReferralService) ReferralLink(code string) string {
	if code == "" {
		return ""
	}

	u, err := url.Parse(s.linkBase)
	if err != nil {
		return s.linkBase + "?ref=" + url.QueryEscape(code)
	}
	q := u.Query()
	q.Set("ref", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// RecordClick logs a click on a referral link. The code is not resolved here;
// unknown codes are logged like any other.
func (s *ReferralService) RecordClick(ctx context.Context, code, ip, userAgent string) error {
	code = normalizeCode(code)
	if err := validateCode(code); err != nil {
		return err
	}

	fp := s.hasher.Fingerprint(ip, userAgent)

	res, err := s.limiters.Click.Allow(ctx, fp.IPHash)
	if err != nil {
		metrics.Clicks.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to check click rate limit: %w", err)
	}
	if !res.Allowed {
		metrics.Clicks.WithLabelValues("rate_limited").Inc()
		return &RateLimitError{Window: res.Window, ResetAt: res.ResetAt}
	}

	err = s.repo.InsertClick(ctx, &model.ReferralClick{
		Code:      code,
		IPHash:    fp.IPHash,
		UAHash:    fp.UAHash,
		CreatedAt: s.now(),
	})
	if err != nil {
		metrics.Clicks.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to record click: %w", err)
	}

	metrics.Clicks.WithLabelValues("recorded").Inc()
	return nil
}

// ResolveCode looks up the referral code, NotFound when nobody owns it.
func (s *ReferralService) ResolveCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	rc, err := s.repo.GetReferralCodeByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown referral code", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}
	return rc, nil
}

// AttachReferral records at signup that the referee arrived through code. The
// referral stays "clicked" until CompleteReferral decides it.
func (s *ReferralService) AttachReferral(ctx context.Context, refereeUserID int64, code, ip, userAgent string) (*model.Referral, error) {
	if refereeUserID <= 0 {
		return nil, ErrUnauthorized
	}
	code = normalizeCode(code)
	if err := validateCode(code); err != nil {
		return nil, err
	}

	rc, err := s.ResolveCode(ctx, code)
	if err != nil {
		return nil, err
	}

	fp := s.hasher.Fingerprint(ip, userAgent)
	ref, err := s.repo.AttachReferral(ctx, &model.Referral{
		Code:           rc.Code,
		ReferrerUserID: rc.UserID,
		RefereeUserID:  refereeUserID,
		Status:         model.ReferralStatusClicked,
		IPHash:         fp.IPHash,
		UAHash:         fp.UAHash,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach referral: %w", err)
	}

	return ref, nil
}

type CompleteReferralInput struct {
	RefereeUserID int64
	Code          string
	IP            string
	UserAgent     string
}

// CompleteReferral decides the referee's referral once their account is
// verified. Fraud rejections are recorded outcomes, not errors. A referee
// whose referral is already decided gets the recorded outcome back.
func (s *ReferralService) CompleteReferral(ctx context.Context, in CompleteReferralInput) (*model.ReferralOutcome, error) {
	log := logger.Logger()

	if in.RefereeUserID <= 0 {
		return nil, ErrUnauthorized
	}
	code := normalizeCode(in.Code)
	if err := validateCode(code); err != nil {
		return nil, err
	}

	res, err := s.limiters.Completion.Allow(ctx, completionLimitKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check completion rate limit: %w", err)
	}
	if !res.Allowed {
		return nil, &RateLimitError{Window: res.Window, ResetAt: res.ResetAt}
	}

	existing, err := s.repo.GetReferralByReferee(ctx, in.RefereeUserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}
	if existing != nil && existing.Status.IsTerminal() {
		return &model.ReferralOutcome{Status: existing.Status, Reason: existing.Reason}, nil
	}

	rc, err := s.ResolveCode(ctx, code)
	if err != nil {
		return nil, err
	}

	referee, err := s.repo.GetUserByID(ctx, in.RefereeUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: referee account", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get referee: %w", err)
	}
	if referee.Email == "" {
		return nil, validationError("referee has no verified email")
	}

	fp := s.hasher.Fingerprint(in.IP, in.UserAgent)
	reason, err := s.fraud.Check(ctx, FraudInput{
		ReferrerUserID: rc.UserID,
		RefereeUserID:  in.RefereeUserID,
		RefereeEmail:   referee.Email,
		Fingerprint:    fp,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	ref := &model.Referral{
		Code:           rc.Code,
		ReferrerUserID: rc.UserID,
		RefereeUserID:  in.RefereeUserID,
		IPHash:         fp.IPHash,
		UAHash:         fp.UAHash,
		CreatedAt:      now,
	}
	if reason != "" {
		ref.Status = model.ReferralStatusRejected
		ref.Reason = &reason
	} else {
		ref.Status = model.ReferralStatusVerified
		ref.VerifiedAt = &now
	}

	saved, written, err := s.repo.SaveReferralOutcome(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to save referral outcome: %w", err)
	}

	outcome := &model.ReferralOutcome{Status: saved.Status, Reason: saved.Reason}
	if !written {
		return outcome, nil
	}

	metrics.Completions.WithLabelValues(string(saved.Status), reason).Inc()

	if saved.Status == model.ReferralStatusRejected {
		log.Info("referral rejected",
			zap.Int64("referrer_id", saved.ReferrerUserID),
			zap.Int64("referee_id", saved.RefereeUserID),
			zap.String("reason", reason))
		return outcome, nil
	}

	log.Info("referral verified",
		zap.Int64("referrer_id", saved.ReferrerUserID),
		zap.Int64("referee_id", saved.RefereeUserID))

	// The referral stands even if awarding fails; the next verification
	// for this referrer awards every tier still missing.
	if _, err := s.tiers.AwardTiers(ctx, saved.ReferrerUserID); err != nil {
		log.Error("failed to award tier rewards",
			zap.Int64("referrer_id", saved.ReferrerUserID),
			zap.Error(err))
	}

	return outcome, nil
}

// CleanupOldClicks purges clicks older than the retention window.
func (s *ReferralService) CleanupOldClicks(ctx context.Context) (*model.CleanupResult, error) {
	cutoff := s.now().Add(-s.retention)

	deleted, err := s.repo.DeleteClicksBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to clean up clicks: %w", err)
	}

	return &model.CleanupResult{Cutoff: cutoff, Deleted: deleted}, nil
}
