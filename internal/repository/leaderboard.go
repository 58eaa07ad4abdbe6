package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"UD_referral_program/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type referrerCount struct {
	UserID          int64     `db:"referrer_user_id"`
	Count           int       `db:"referrals"`
	FirstVerifiedAt time.Time `db:"first_verified_at"`
}

type leaderboardEntry struct {
	WeekID string `db:"week_id"`
	UserID int64  `db:"user_id"`
	Points int    `db:"points"`
	Rank   int    `db:"rank"`
}

func (e leaderboardEntry) toModel() model.LeaderboardWeekEntry {
	return model.LeaderboardWeekEntry{
		WeekID: e.WeekID,
		UserID: e.UserID,
		Points: e.Points,
		Rank:   e.Rank,
	}
}

// CountVerifiedByReferrer aggregates verified referrals per referrer whose
// verification falls in [from, to). A zero from or to leaves that side open.
// Referrers below minCount are dropped; limit 0 means no limit.
func (r *Repository) CountVerifiedByReferrer(ctx context.Context, from, to time.Time, minCount int, limit uint64) ([]model.ReferrerCount, error) {
	builder := psql.
		Select(
			"referrer_user_id",
			"COUNT(*) AS referrals",
			"MIN(verified_at) AS first_verified_at",
		).
		From("referrals").
		Where(squirrel.Eq{"status": string(model.ReferralStatusVerified)}).
		Where("verified_at IS NOT NULL").
		GroupBy("referrer_user_id").
		OrderBy("referrals DESC", "first_verified_at ASC", "referrer_user_id ASC")

	if !from.IsZero() {
		builder = builder.Where(squirrel.GtOrEq{"verified_at": from})
	}
	if !to.IsZero() {
		builder = builder.Where(squirrel.Lt{"verified_at": to})
	}
	if minCount > 0 {
		builder = builder.Having("COUNT(*) >= ?", minCount)
	}
	if limit > 0 {
		builder = builder.Limit(limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build referrer count query: %w", err)
	}

	var rows []referrerCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count referrals per referrer: %w", err)
	}

	out := make([]model.ReferrerCount, len(rows))
	for i, row := range rows {
		out[i] = model.ReferrerCount{
			UserID:          row.UserID,
			Count:           row.Count,
			FirstVerifiedAt: row.FirstVerifiedAt,
		}
	}

	return out, nil
}

// ReplaceLeaderboardWeek swaps the week's entries in one transaction, readers
// see either the previous ranking or the new one.
func (r *Repository) ReplaceLeaderboardWeek(ctx context.Context, weekID string, entries []model.LeaderboardWeekEntry) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		deleteQuery, deleteArgs, err := psql.
			Delete("leaderboard_weeks").
			Where(squirrel.Eq{"week_id": weekID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build leaderboard delete query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
			return fmt.Errorf("failed to delete leaderboard week: %w", err)
		}

		if len(entries) == 0 {
			return nil
		}

		builder := psql.
			Insert("leaderboard_weeks").
			Columns("week_id", "user_id", "points", "rank")

		for _, e := range entries {
			builder = builder.Values(weekID, e.UserID, e.Points, e.Rank)
		}

		query, args, err := builder.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build leaderboard insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert leaderboard week: %w", err)
		}

		return nil
	})
}

func (r *Repository) GetLeaderboardWeek(ctx context.Context, weekID string, limit uint64) ([]model.LeaderboardWeekEntry, error) {
	builder := psql.
		Select("week_id", "user_id", "points", "rank").
		From("leaderboard_weeks").
		Where(squirrel.Eq{"week_id": weekID}).
		OrderBy("rank ASC")
	if limit > 0 {
		builder = builder.Limit(limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []leaderboardEntry
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get leaderboard week: %w", err)
	}

	out := make([]model.LeaderboardWeekEntry, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}

	return out, nil
}

func (r *Repository) GetLeaderboardWeekEntry(ctx context.Context, weekID string, userID int64) (*model.LeaderboardWeekEntry, error) {
	query, args, err := psql.
		Select("week_id", "user_id", "points", "rank").
		From("leaderboard_weeks").
		Where(squirrel.Eq{"week_id": weekID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row leaderboardEntry
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get leaderboard entry: %w", err)
	}

	entry := row.toModel()
	return &entry, nil
}
