package service

import (
	"fmt"
	"time"

	"UD_referral_program/internal/model"

	"github.com/go-playground/validator/v10"
)

type Tier struct {
	Threshold   int              `mapstructure:"threshold" validate:"min=1"`
	Type        model.RewardType `mapstructure:"type" validate:"required"`
	AmountCents int64            `mapstructure:"amountCents" validate:"min=0"`
	Description string           `mapstructure:"description" validate:"required"`
}

type MonthlyPrizeConfig struct {
	MinReferrals int              `mapstructure:"minReferrals" validate:"min=1"`
	Type         model.RewardType `mapstructure:"type" validate:"required"`
	AmountCents  int64            `mapstructure:"amountCents" validate:"min=0"`
	Description  string           `mapstructure:"description" validate:"required"`
}

// ProgramConfig is the referral program's static configuration. It is loaded
// and validated once at startup and never mutated afterwards.
type ProgramConfig struct {
	Salt        string `mapstructure:"salt" validate:"required,min=16"`
	LinkBaseURL string `mapstructure:"linkBaseUrl" validate:"required,url"`

	ClickLimit       int64         `mapstructure:"clickLimit" validate:"min=1"`
	ClickWindow      time.Duration `mapstructure:"clickWindow" validate:"gt=0"`
	CompletionLimit  int64         `mapstructure:"completionLimit" validate:"min=1"`
	CompletionWindow time.Duration `mapstructure:"completionWindow" validate:"gt=0"`

	DuplicateDeviceWindow time.Duration `mapstructure:"duplicateDeviceWindow" validate:"gt=0"`
	IPSignupCap           int           `mapstructure:"ipSignupCap" validate:"min=1"`
	IPSignupWindow        time.Duration `mapstructure:"ipSignupWindow" validate:"gt=0"`
	DisposableDomains     []string      `mapstructure:"disposableDomains" validate:"dive,required,fqdn"`

	ClickRetention  time.Duration `mapstructure:"clickRetention" validate:"gt=0"`
	LeaderboardSize uint64        `mapstructure:"leaderboardSize" validate:"min=1,max=1000"`

	Tiers        []Tier             `mapstructure:"tiers" validate:"required,min=1,dive"`
	MonthlyPrize MonthlyPrizeConfig `mapstructure:"monthlyPrize"`
}

func DefaultTiers() []Tier {
	return []Tier{
		{Threshold: 5, Type: model.RewardTypeVoucher, AmountCents: 1000, Description: "$10 voucher"},
		{Threshold: 10, Type: model.RewardTypeVoucher, AmountCents: 2500, Description: "$25 voucher"},
		{Threshold: 25, Type: model.RewardTypeSub, Description: "Free subscription"},
		{Threshold: 50, Type: model.RewardTypeVoucher, AmountCents: 10000, Description: "$100 voucher"},
		{Threshold: 75, Type: model.RewardTypeSub, Description: "Premium subscription"},
		{Threshold: 100, Type: model.RewardTypeDevice, Description: "Device"},
		{Threshold: 200, Type: model.RewardTypeDevice, Description: "Flagship device"},
		{Threshold: 500, Type: model.RewardTypeEquity, Description: "Equity grant"},
	}
}

// DefaultProgramConfig returns the stock limits and tier table. Salt and
// LinkBaseURL have no default and must come from configuration.
func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		ClickLimit:            60,
		ClickWindow:           time.Hour,
		CompletionLimit:       10,
		CompletionWindow:      time.Minute,
		DuplicateDeviceWindow: 7 * 24 * time.Hour,
		IPSignupCap:           3,
		IPSignupWindow:        24 * time.Hour,
		ClickRetention:        90 * 24 * time.Hour,
		LeaderboardSize:       100,
		Tiers:                 DefaultTiers(),
		MonthlyPrize: MonthlyPrizeConfig{
			MinReferrals: 100,
			Type:         model.RewardTypeDevice,
			Description:  "Monthly grand prize",
		},
	}
}

func (c ProgramConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid referral config: %w", err)
	}

	for i, t := range c.Tiers {
		if !t.Type.Valid() {
			return fmt.Errorf("invalid referral config: tier %d has unknown reward type %q", t.Threshold, t.Type)
		}
		if i > 0 && t.Threshold <= c.Tiers[i-1].Threshold {
			return fmt.Errorf("invalid referral config: tier thresholds must be strictly ascending, %d follows %d",
				t.Threshold, c.Tiers[i-1].Threshold)
		}
	}

	if !c.MonthlyPrize.Type.Valid() {
		return fmt.Errorf("invalid referral config: monthly prize has unknown reward type %q", c.MonthlyPrize.Type)
	}

	return nil
}
