package model

import (
	"time"

	"github.com/google/uuid"
)

type LeaderboardPeriod string

const (
	LeaderboardPeriodWeek LeaderboardPeriod = "week"
	LeaderboardPeriodAll  LeaderboardPeriod = "all"
)

type LeaderboardWeekEntry struct {
	WeekID string
	UserID int64
	Points int
	Rank   int
}

// ReferrerCount is one row of a verified-referral aggregation.
type ReferrerCount struct {
	UserID          int64
	Count           int
	FirstVerifiedAt time.Time
}

type LeaderboardRow struct {
	Rank        int
	UserID      int64
	Points      int
	MaskedEmail string
}

type Leaderboard struct {
	Period  LeaderboardPeriod
	WeekID  string
	Entries []LeaderboardRow
	Me      *LeaderboardRow
}

type LeaderboardRebuild struct {
	WeekID  string
	Entries int
}

type MonthlyPrize struct {
	MonthKey       string
	WinnerUserID   int64
	ReferralsCount int
	RewardID       uuid.UUID
	AwardedAt      time.Time
}

// MonthlyPrizeResult reports what ComputeMonthlyPrize did for a month.
// Prize is nil when nobody qualified; Created is false for an idempotent skip.
type MonthlyPrizeResult struct {
	MonthKey   string
	Qualifying int
	Prize      *MonthlyPrize
	Created    bool
}

type CleanupResult struct {
	Cutoff  time.Time
	Deleted int64
}
