package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"UD_referral_program/internal/model"

	"github.com/Masterminds/squirrel"
)

type referralCode struct {
	UserID    int64     `db:"user_id"`
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
}

type referral struct {
	Code           string     `db:"code"`
	ReferrerUserID int64      `db:"referrer_user_id"`
	RefereeUserID  int64      `db:"referee_user_id"`
	Status         string     `db:"status"`
	Reason         *string    `db:"reason"`
	IPHash         string     `db:"ip_hash"`
	UAHash         string     `db:"ua_hash"`
	CreatedAt      time.Time  `db:"created_at"`
	VerifiedAt     *time.Time `db:"verified_at"`
}

var referralColumns = []string{
	"code", "referrer_user_id", "referee_user_id", "status", "reason",
	"ip_hash", "ua_hash", "created_at", "verified_at",
}

func (r referral) toModel() *model.Referral {
	return &model.Referral{
		Code:           r.Code,
		ReferrerUserID: r.ReferrerUserID,
		RefereeUserID:  r.RefereeUserID,
		Status:         model.ReferralStatus(r.Status),
		Reason:         r.Reason,
		IPHash:         r.IPHash,
		UAHash:         r.UAHash,
		CreatedAt:      r.CreatedAt,
		VerifiedAt:     r.VerifiedAt,
	}
}

// CreateReferralCode inserts the user's code. It returns ErrConflict when the
// code is already taken by another user; when the user already owns a code
// the existing one is returned unchanged.
func (r *Repository) CreateReferralCode(ctx context.Context, userID int64, code string, now time.Time) (*model.ReferralCode, error) {
	query, args, err := psql.
		Insert("referral_codes").
		Columns("user_id", "code", "created_at").
		Values(userID, code, now).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build referral code insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to insert referral code: %w", err)
	}

	return r.GetReferralCodeByUser(ctx, userID)
}

func (r *Repository) GetReferralCodeByUser(ctx context.Context, userID int64) (*model.ReferralCode, error) {
	return r.getReferralCode(ctx, squirrel.Eq{"user_id": userID})
}

func (r *Repository) GetReferralCodeByCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	return r.getReferralCode(ctx, squirrel.Eq{"code": code})
}

func (r *Repository) getReferralCode(ctx context.Context, where squirrel.Eq) (*model.ReferralCode, error) {
	query, args, err := psql.
		Select("user_id", "code", "created_at").
		From("referral_codes").
		Where(where).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rc referralCode
	err = r.db.GetContext(ctx, &rc, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get referral code: %w", err)
	}

	return &model.ReferralCode{
		UserID:    rc.UserID,
		Code:      rc.Code,
		CreatedAt: rc.CreatedAt,
	}, nil
}

func (r *Repository) InsertClick(ctx context.Context, click *model.ReferralClick) error {
	query, args, err := psql.
		Insert("referral_clicks").
		SetMap(map[string]interface{}{
			"code":       click.Code,
			"ip_hash":    click.IPHash,
			"ua_hash":    click.UAHash,
			"created_at": click.CreatedAt,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build click insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert click: %w", err)
	}

	return nil
}

func (r *Repository) CountClicksByCode(ctx context.Context, code string) (int, error) {
	return r.count(ctx, psql.
		Select("COUNT(*)").
		From("referral_clicks").
		Where(squirrel.Eq{"code": code}))
}

// CountClicksByFingerprint counts clicks since the given time that share the
// IP hash or the user-agent hash.
func (r *Repository) CountClicksByFingerprint(ctx context.Context, ipHash, uaHash string, since time.Time) (int, error) {
	return r.count(ctx, psql.
		Select("COUNT(*)").
		From("referral_clicks").
		Where(squirrel.Or{
			squirrel.Eq{"ip_hash": ipHash},
			squirrel.Eq{"ua_hash": uaHash},
		}).
		Where(squirrel.GtOrEq{"created_at": since}))
}

// CountSignupsByIPHash counts referrals recorded from ipHash since the given
// time, excluding the referee being evaluated.
func (r *Repository) CountSignupsByIPHash(ctx context.Context, ipHash string, since time.Time, excludeReferee int64) (int, error) {
	return r.count(ctx, psql.
		Select("COUNT(*)").
		From("referrals").
		Where(squirrel.Eq{"ip_hash": ipHash}).
		Where(squirrel.NotEq{"referee_user_id": excludeReferee}).
		Where(squirrel.GtOrEq{"created_at": since}))
}

func (r *Repository) CountVerifiedReferrals(ctx context.Context, referrerUserID int64) (int, error) {
	return r.count(ctx, psql.
		Select("COUNT(*)").
		From("referrals").
		Where(squirrel.Eq{
			"referrer_user_id": referrerUserID,
			"status":           string(model.ReferralStatusVerified),
		}))
}

// CountVerifiedReferralsBetween counts a referrer's referrals verified in [from, to).
func (r *Repository) CountVerifiedReferralsBetween(ctx context.Context, referrerUserID int64, from, to time.Time) (int, error) {
	return r.count(ctx, psql.
		Select("COUNT(*)").
		From("referrals").
		Where(squirrel.Eq{
			"referrer_user_id": referrerUserID,
			"status":           string(model.ReferralStatusVerified),
		}).
		Where(squirrel.GtOrEq{"verified_at": from}).
		Where(squirrel.Lt{"verified_at": to}))
}

func (r *Repository) count(ctx context.Context, builder squirrel.SelectBuilder) (int, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}

	return n, nil
}

func (r *Repository) GetReferralByReferee(ctx context.Context, refereeUserID int64) (*model.Referral, error) {
	query, args, err := psql.
		Select(referralColumns...).
		From("referrals").
		Where(squirrel.Eq{"referee_user_id": refereeUserID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ref referral
	err = r.db.GetContext(ctx, &ref, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}

	return ref.toModel(), nil
}

// AttachReferral records a pending ("clicked") referral for the referee. An
// existing row for the referee, whatever its status, is left untouched and
// returned.
func (r *Repository) AttachReferral(ctx context.Context, ref *model.Referral) (*model.Referral, error) {
	query, args, err := psql.
		Insert("referrals").
		SetMap(map[string]interface{}{
			"code":             ref.Code,
			"referrer_user_id": ref.ReferrerUserID,
			"referee_user_id":  ref.RefereeUserID,
			"status":           string(model.ReferralStatusClicked),
			"ip_hash":          ref.IPHash,
			"ua_hash":          ref.UAHash,
			"created_at":       ref.CreatedAt,
		}).
		Suffix("ON CONFLICT (referee_user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build referral insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert referral: %w", err)
	}

	return r.GetReferralByReferee(ctx, ref.RefereeUserID)
}

// SaveReferralOutcome upserts the referee's referral with a terminal status.
// A row that is already terminal is never rewritten: the stored outcome is
// returned with written=false.
func (r *Repository) SaveReferralOutcome(ctx context.Context, ref *model.Referral) (saved *model.Referral, written bool, err error) {
	query, args, err := psql.
		Insert("referrals").
		SetMap(map[string]interface{}{
			"code":             ref.Code,
			"referrer_user_id": ref.ReferrerUserID,
			"referee_user_id":  ref.RefereeUserID,
			"status":           string(ref.Status),
			"reason":           ref.Reason,
			"ip_hash":          ref.IPHash,
			"ua_hash":          ref.UAHash,
			"created_at":       ref.CreatedAt,
			"verified_at":      ref.VerifiedAt,
		}).
		Suffix(`ON CONFLICT (referee_user_id) DO UPDATE SET
			code = EXCLUDED.code,
			referrer_user_id = EXCLUDED.referrer_user_id,
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			ip_hash = EXCLUDED.ip_hash,
			ua_hash = EXCLUDED.ua_hash,
			verified_at = EXCLUDED.verified_at
			WHERE referrals.status = 'clicked'
			RETURNING ` + strings.Join(referralColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build referral upsert query: %w", err)
	}

	var row referral
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existing, getErr := r.GetReferralByReferee(ctx, ref.RefereeUserID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to upsert referral: %w", err)
	}

	return row.toModel(), true, nil
}

func (r *Repository) DeleteClicksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql.
		Delete("referral_clicks").
		Where(squirrel.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build click cleanup query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old clicks: %w", err)
	}

	return result.RowsAffected()
}
