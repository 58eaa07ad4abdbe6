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

type reward struct {
	ID          uuid.UUID `db:"id"`
	UserID      int64     `db:"user_id"`
	Type        string    `db:"type"`
	AmountCents int64     `db:"amount_cents"`
	Tier        int       `db:"tier"`
	Source      string    `db:"source"`
	Status      string    `db:"status"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

var rewardColumns = []string{
	"id", "user_id", "type", "amount_cents", "tier", "source", "status",
	"description", "created_at", "updated_at",
}

func (r reward) toModel() *model.Reward {
	return &model.Reward{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        model.RewardType(r.Type),
		AmountCents: r.AmountCents,
		Tier:        r.Tier,
		Source:      model.RewardSource(r.Source),
		Status:      model.RewardStatus(r.Status),
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type rewardClaim struct {
	ID             uuid.UUID `db:"id"`
	RewardID       uuid.UUID `db:"reward_id"`
	UserID         int64     `db:"user_id"`
	IdempotencyKey string    `db:"idempotency_key"`
	Status         string    `db:"status"`
	ClaimedAt      time.Time `db:"claimed_at"`
}

var claimColumns = []string{"id", "reward_id", "user_id", "idempotency_key", "status", "claimed_at"}

func (c rewardClaim) toModel() *model.RewardClaim {
	return &model.RewardClaim{
		ID:             c.ID,
		RewardID:       c.RewardID,
		UserID:         c.UserID,
		IdempotencyKey: c.IdempotencyKey,
		Status:         model.ClaimStatus(c.Status),
		ClaimedAt:      c.ClaimedAt,
	}
}

func rewardValues(rw *model.Reward) map[string]interface{} {
	return map[string]interface{}{
		"id":           rw.ID,
		"user_id":      rw.UserID,
		"type":         string(rw.Type),
		"amount_cents": rw.AmountCents,
		"tier":         rw.Tier,
		"source":       string(rw.Source),
		"status":       string(rw.Status),
		"description":  rw.Description,
		"created_at":   rw.CreatedAt,
		"updated_at":   rw.UpdatedAt,
	}
}

// CreateTierReward inserts a referral tier reward unless the user already has
// one for that tier. It reports whether a row was created.
func (r *Repository) CreateTierReward(ctx context.Context, rw *model.Reward) (bool, error) {
	query, args, err := psql.
		Insert("rewards").
		SetMap(rewardValues(rw)).
		Suffix("ON CONFLICT (user_id, source, tier) WHERE source = 'referral' DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build reward insert query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert reward: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

func (r *Repository) ListAwardedTiers(ctx context.Context, userID int64) ([]int, error) {
	query, args, err := psql.
		Select("tier").
		From("rewards").
		Where(squirrel.Eq{"user_id": userID, "source": string(model.RewardSourceReferral)}).
		OrderBy("tier").
		ToSql()
	if err != nil {
		return nil, err
	}

	var tiers []int
	if err := r.db.SelectContext(ctx, &tiers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list awarded tiers: %w", err)
	}

	return tiers, nil
}

func (r *Repository) GetReward(ctx context.Context, rewardID uuid.UUID) (*model.Reward, error) {
	return getReward(ctx, r.db, rewardID, false)
}

func getReward(ctx context.Context, q sqlx.QueryerContext, rewardID uuid.UUID, forUpdate bool) (*model.Reward, error) {
	builder := psql.
		Select(rewardColumns...).
		From("rewards").
		Where(squirrel.Eq{"id": rewardID})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rw reward
	err = sqlx.GetContext(ctx, q, &rw, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}

	return rw.toModel(), nil
}

func (r *Repository) ListRewardsByUser(ctx context.Context, userID int64) ([]*model.Reward, error) {
	query, args, err := psql.
		Select(rewardColumns...).
		From("rewards").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "tier DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []reward
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}

	rewards := make([]*model.Reward, len(rows))
	for i, rw := range rows {
		rewards[i] = rw.toModel()
	}

	return rewards, nil
}

func (r *Repository) SumRewardCents(ctx context.Context, userID int64) (int64, error) {
	query, args, err := psql.
		Select("COALESCE(SUM(amount_cents), 0)").
		From("rewards").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var sum int64
	if err := r.db.GetContext(ctx, &sum, query, args...); err != nil {
		return 0, fmt.Errorf("failed to sum rewards: %w", err)
	}

	return sum, nil
}

// ApproveReward moves a pending reward to approved.
func (r *Repository) ApproveReward(ctx context.Context, rewardID uuid.UUID, now time.Time) (*model.Reward, error) {
	var approved *model.Reward
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		current, err := getReward(ctx, tx, rewardID, true)
		if err != nil {
			return err
		}
		if current.Status != model.RewardStatusPending {
			return ErrInvalidState
		}

		if err := advanceReward(ctx, tx, rewardID, model.RewardStatusPending, model.RewardStatusApproved, now); err != nil {
			return err
		}

		current.Status = model.RewardStatusApproved
		current.UpdatedAt = now
		approved = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	return approved, nil
}

// advanceReward is a compare-and-swap on the reward status.
func advanceReward(ctx context.Context, tx *sqlx.Tx, rewardID uuid.UUID, from, to model.RewardStatus, now time.Time) error {
	query, args, err := psql.
		Update("rewards").
		SetMap(map[string]interface{}{
			"status":     string(to),
			"updated_at": now,
		}).
		Where(squirrel.Eq{"id": rewardID, "status": string(from)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build reward update query: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update reward: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidState
	}

	return nil
}

// ClaimReward converts an approved reward into a paid one, at most once per
// (reward, idempotency key). The reward row is locked for the whole check so
// concurrent claims serialize; a replay of an earlier key returns the stored
// claim without side effects.
func (r *Repository) ClaimReward(ctx context.Context, rewardID uuid.UUID, userID int64, idempotencyKey string, now time.Time) (*model.ClaimResult, error) {
	var result *model.ClaimResult
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		rw, err := getReward(ctx, tx, rewardID, true)
		if err != nil {
			return err
		}
		if rw.UserID != userID {
			return ErrNotOwner
		}

		existing, err := getClaim(ctx, tx, rewardID, idempotencyKey)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if existing != nil {
			result = &model.ClaimResult{Claim: existing, Reward: rw, Replayed: true}
			return nil
		}

		if rw.Status != model.RewardStatusApproved {
			return ErrInvalidState
		}

		claim := &model.RewardClaim{
			ID:             uuid.New(),
			RewardID:       rewardID,
			UserID:         userID,
			IdempotencyKey: idempotencyKey,
			Status:         model.ClaimStatusClaimed,
			ClaimedAt:      now,
		}

		query, args, err := psql.
			Insert("reward_claims").
			SetMap(map[string]interface{}{
				"id":              claim.ID,
				"reward_id":       claim.RewardID,
				"user_id":         claim.UserID,
				"idempotency_key": claim.IdempotencyKey,
				"status":          string(claim.Status),
				"claimed_at":      claim.ClaimedAt,
			}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build claim insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("failed to insert claim: %w", err)
		}

		if err := advanceReward(ctx, tx, rewardID, model.RewardStatusApproved, model.RewardStatusPaid, now); err != nil {
			return err
		}

		rw.Status = model.RewardStatusPaid
		rw.UpdatedAt = now
		result = &model.ClaimResult{Claim: claim, Reward: rw}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func getClaim(ctx context.Context, tx *sqlx.Tx, rewardID uuid.UUID, idempotencyKey string) (*model.RewardClaim, error) {
	query, args, err := psql.
		Select(claimColumns...).
		From("reward_claims").
		Where(squirrel.Eq{"reward_id": rewardID, "idempotency_key": idempotencyKey}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var c rewardClaim
	err = tx.GetContext(ctx, &c, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return c.toModel(), nil
}
