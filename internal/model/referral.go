package model

import "time"

type ReferralStatus string

const (
	ReferralStatusClicked  ReferralStatus = "clicked"
	ReferralStatusVerified ReferralStatus = "verified"
	ReferralStatusRejected ReferralStatus = "rejected"
)

// IsTerminal reports whether the status can no longer change.
func (s ReferralStatus) IsTerminal() bool {
	return s == ReferralStatusVerified || s == ReferralStatusRejected
}

const (
	RejectSelfReferral    = "self-referral"
	RejectDisposableEmail = "disposable-email"
	RejectDuplicateDevice = "duplicate-device"
	RejectIPLimitExceeded = "ip-limit-exceeded"
)

type ReferralCode struct {
	UserID    int64
	Code      string
	CreatedAt time.Time
}

type ReferralClick struct {
	Code      string
	IPHash    string
	UAHash    string
	CreatedAt time.Time
}

type Referral struct {
	Code           string
	ReferrerUserID int64
	RefereeUserID  int64
	Status         ReferralStatus
	Reason         *string
	IPHash         string
	UAHash         string
	CreatedAt      time.Time
	VerifiedAt     *time.Time
}

// ReferralOutcome is what CompleteReferral reports back to the caller.
// A rejection is a recorded outcome, not an error.
type ReferralOutcome struct {
	Status ReferralStatus
	Reason *string
}

type Summary struct {
	Clicks         int
	VerifiedCount  int
	EarnedCents    int64
	ThisWeekPoints int
	NextTier       *NextTier
	ReferralCode   string
	ReferralLink   string
}

type NextTier struct {
	Threshold   int
	Remaining   int
	Type        RewardType
	AmountCents int64
	Description string
}
