package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/pkg/logger"

	"go.uber.org/zap"
)

type LeaderboardService struct {
	repo LeaderboardRepository
	size uint64
	now  func() time.Time
}

func NewLeaderboardService(repo LeaderboardRepository, size uint64) *LeaderboardService {
	return &LeaderboardService{
		repo: repo,
		size: size,
		now:  time.Now,
	}
}

// WeekID formats the ISO week t falls in, e.g. "2024-W07".
func WeekID(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// WeekStart returns Monday 00:00 UTC of t's ISO week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

// RankEntries orders referrers by points descending, then user id ascending,
// and numbers them 1..N.
func RankEntries(weekID string, counts []model.ReferrerCount) []model.LeaderboardWeekEntry {
	sorted := make([]model.ReferrerCount, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	entries := make([]model.LeaderboardWeekEntry, len(sorted))
	for i, c := range sorted {
		entries[i] = model.LeaderboardWeekEntry{
			WeekID: weekID,
			UserID: c.UserID,
			Points: c.Count,
			Rank:   i + 1,
		}
	}
	return entries
}

// MaskEmail keeps the first three characters of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		if email == "" {
			return ""
		}
		return prefix(email, 3) + "***"
	}
	return prefix(email[:at], 3) + "***@" + email[at+1:]
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}

// RebuildLeaderboard recomputes the current week's ranking from verified
// referrals and replaces the stored week atomically.
func (s *LeaderboardService) RebuildLeaderboard(ctx context.Context) (*model.LeaderboardRebuild, error) {
	now := s.now()
	weekID := WeekID(now)
	from := WeekStart(now)

	counts, err := s.repo.CountVerifiedByReferrer(ctx, from, from.AddDate(0, 0, 7), 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to count weekly referrals: %w", err)
	}

	entries := RankEntries(weekID, counts)
	if err := s.repo.ReplaceLeaderboardWeek(ctx, weekID, entries); err != nil {
		return nil, fmt.Errorf("failed to replace leaderboard week %s: %w", weekID, err)
	}

	logger.Logger().Info("leaderboard rebuilt",
		zap.String("week_id", weekID),
		zap.Int("entries", len(entries)))

	return &model.LeaderboardRebuild{WeekID: weekID, Entries: len(entries)}, nil
}

// GetLeaderboard returns the top referrers for the period. Store failures
// degrade to an empty board.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, period model.LeaderboardPeriod, userID int64) (*model.Leaderboard, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	var (
		entries []model.LeaderboardWeekEntry
		me      *model.LeaderboardWeekEntry
		board   = &model.Leaderboard{Period: period, Entries: []model.LeaderboardRow{}}
		err     error
	)

	switch period {
	case model.LeaderboardPeriodWeek, "":
		board.Period = model.LeaderboardPeriodWeek
		board.WeekID = WeekID(s.now())
		entries, me, err = s.weekEntries(ctx, board.WeekID, userID)
	case model.LeaderboardPeriodAll:
		entries, me, err = s.allTimeEntries(ctx, userID)
	default:
		return nil, validationError(fmt.Sprintf("unknown leaderboard period %q", period))
	}
	if err != nil {
		logger.Logger().Error("failed to load leaderboard",
			zap.String("period", string(board.Period)),
			zap.Error(err))
		return board, nil
	}

	ids := make([]int64, 0, len(entries)+1)
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	if me != nil {
		ids = append(ids, me.UserID)
	}

	users, err := s.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		logger.Logger().Error("failed to load leaderboard users", zap.Error(err))
		users = nil
	}

	toRow := func(e model.LeaderboardWeekEntry) model.LeaderboardRow {
		row := model.LeaderboardRow{Rank: e.Rank, UserID: e.UserID, Points: e.Points}
		if u, ok := users[e.UserID]; ok {
			row.MaskedEmail = MaskEmail(u.Email)
		}
		return row
	}

	for _, e := range entries {
		board.Entries = append(board.Entries, toRow(e))
	}
	if me != nil {
		row := toRow(*me)
		board.Me = &row
	}

	return board, nil
}

func (s *LeaderboardService) weekEntries(ctx context.Context, weekID string, userID int64) ([]model.LeaderboardWeekEntry, *model.LeaderboardWeekEntry, error) {
	entries, err := s.repo.GetLeaderboardWeek(ctx, weekID, s.size)
	if err != nil {
		return nil, nil, err
	}

	me, err := s.repo.GetLeaderboardWeekEntry(ctx, weekID, userID)
	if err != nil {
		// Not ranked this week.
		me = nil
	}

	return entries, me, nil
}

func (s *LeaderboardService) allTimeEntries(ctx context.Context, userID int64) ([]model.LeaderboardWeekEntry, *model.LeaderboardWeekEntry, error) {
	counts, err := s.repo.CountVerifiedByReferrer(ctx, time.Time{}, time.Time{}, 1, 0)
	if err != nil {
		return nil, nil, err
	}

	ranked := RankEntries("", counts)

	var me *model.LeaderboardWeekEntry
	for i := range ranked {
		if ranked[i].UserID == userID {
			e := ranked[i]
			me = &e
			break
		}
	}

	if uint64(len(ranked)) > s.size {
		ranked = ranked[:s.size]
	}

	return ranked, me, nil
}
