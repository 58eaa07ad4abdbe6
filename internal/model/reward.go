package model

import (
	"time"

	"github.com/google/uuid"
)

type RewardType string

const (
	RewardTypeVoucher RewardType = "voucher"
	RewardTypeCash    RewardType = "cash"
	RewardTypeSub     RewardType = "sub"
	RewardTypeDevice  RewardType = "device"
	RewardTypeEquity  RewardType = "equity"
)

func (t RewardType) Valid() bool {
	switch t {
	case RewardTypeVoucher, RewardTypeCash, RewardTypeSub, RewardTypeDevice, RewardTypeEquity:
		return true
	}
	return false
}

type RewardSource string

const (
	RewardSourceReferral     RewardSource = "referral"
	RewardSourceMonthlyPrize RewardSource = "monthly_prize"
)

type RewardStatus string

const (
	RewardStatusPending  RewardStatus = "pending"
	RewardStatusApproved RewardStatus = "approved"
	RewardStatusPaid     RewardStatus = "paid"
)

type Reward struct {
	ID          uuid.UUID
	UserID      int64
	Type        RewardType
	AmountCents int64
	Tier        int
	Source      RewardSource
	Status      RewardStatus
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ClaimStatus string

const ClaimStatusClaimed ClaimStatus = "claimed"

type RewardClaim struct {
	ID             uuid.UUID
	RewardID       uuid.UUID
	UserID         int64
	IdempotencyKey string
	Status         ClaimStatus
	ClaimedAt      time.Time
}

// ClaimResult carries the claim and the reward as seen after the claim.
// Replayed is set when the idempotency key matched an earlier claim.
type ClaimResult struct {
	Claim    *RewardClaim
	Reward   *Reward
	Replayed bool
}
