package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"UD_referral_program/internal/model"

	"github.com/lib/pq"
)

type User struct {
	ID       int64  `db:"id"`
	Email    string `db:"email"`
	Username string `db:"username"`
}

func (u User) toModel() *model.User {
	return &model.User{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
	}
}

func (r *Repository) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query, args, err := psql.
		Select("id", "email", "username").
		From("users").
		Where("id = ?", userID).
		ToSql()
	if err != nil {
		return nil, err
	}

	var user User
	err = r.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user.toModel(), nil
}

// GetUsersByIDs returns the users found among ids keyed by id. Missing ids
// are simply absent from the map.
func (r *Repository) GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	out := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := psql.
		Select("id", "email", "username").
		From("users").
		Where("id = ANY(?)", pq.Array(ids)).
		ToSql()
	if err != nil {
		return nil, err
	}

	var users []User
	err = r.db.SelectContext(ctx, &users, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	for _, u := range users {
		out[u.ID] = u.toModel()
	}

	return out, nil
}
