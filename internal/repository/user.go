package repository

import (
	"context"
	"errors"

	"github.com/hray3182/PingMe/internal/database"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert records the chat profile, refreshing names on every /start
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (user_id, username, first_name) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username, first_name = EXCLUDED.first_name,
		     updated_at = CURRENT_TIMESTAMP
		 RETURNING created_at, updated_at`,
		user.UserID, user.Username, user.FirstName,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_id, COALESCE(username, ''), COALESCE(first_name, ''), created_at, updated_at
		 FROM users WHERE user_id = $1`,
		userID,
	).Scan(&user.UserID, &user.Username, &user.FirstName, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
