package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"UD_referral_program/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var errPrizeAlreadyAwarded = errors.New("monthly prize already awarded")

type monthlyPrize struct {
	MonthKey       string    `db:"month_key"`
	WinnerUserID   int64     `db:"winner_user_id"`
	ReferralsCount int       `db:"referrals_count"`
	RewardID       uuid.UUID `db:"reward_id"`
	AwardedAt      time.Time `db:"awarded_at"`
}

func (r *Repository) GetMonthlyPrize(ctx context.Context, monthKey string) (*model.MonthlyPrize, error) {
	query, args, err := psql.
		Select("month_key", "winner_user_id", "referrals_count", "reward_id", "awarded_at").
		From("monthly_prizes").
		Where(squirrel.Eq{"month_key": monthKey}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row monthlyPrize
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get monthly prize: %w", err)
	}

	return &model.MonthlyPrize{
		MonthKey:       row.MonthKey,
		WinnerUserID:   row.WinnerUserID,
		ReferralsCount: row.ReferralsCount,
		RewardID:       row.RewardID,
		AwardedAt:      row.AwardedAt,
	}, nil
}

// AwardMonthlyPrize writes the prize reward and the month's prize row
// together. When the month was already awarded, nothing is written and the
// stored prize is returned with created=false.
func (r *Repository) AwardMonthlyPrize(ctx context.Context, prize *model.MonthlyPrize, rw *model.Reward) (*model.MonthlyPrize, bool, error) {
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		rewardQuery, rewardArgs, err := psql.
			Insert("rewards").
			SetMap(rewardValues(rw)).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build prize reward insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, rewardQuery, rewardArgs...); err != nil {
			return fmt.Errorf("failed to insert prize reward: %w", err)
		}

		prizeQuery, prizeArgs, err := psql.
			Insert("monthly_prizes").
			SetMap(map[string]interface{}{
				"month_key":       prize.MonthKey,
				"winner_user_id":  prize.WinnerUserID,
				"referrals_count": prize.ReferralsCount,
				"reward_id":       rw.ID,
				"awarded_at":      prize.AwardedAt,
			}).
			Suffix("ON CONFLICT (month_key) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build monthly prize insert query: %w", err)
		}

		result, err := tx.ExecContext(ctx, prizeQuery, prizeArgs...)
		if err != nil {
			return fmt.Errorf("failed to insert monthly prize: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return errPrizeAlreadyAwarded
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, errPrizeAlreadyAwarded) {
			existing, getErr := r.GetMonthlyPrize(ctx, prize.MonthKey)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	awarded := *prize
	awarded.RewardID = rw.ID
	return &awarded, true, nil
}
