package repository

import (
	"context"
	"errors"
	"fmt"

	"colorgame/database"
	"colorgame/domain/entities"
	"colorgame/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// userRepository reads and writes the consumed wallet
type userRepository struct {
	q Queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) interfaces.UserRepository {
	return &userRepository{q: db.Pool}
}

func newUserRepositoryWithTx(tx Queryable) interfaces.UserRepository {
	return &userRepository{q: tx}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	return r.get(ctx, `SELECT id, username, wallet, created_at, updated_at FROM users WHERE id = $1`, id)
}

func (r *userRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error) {
	return r.get(ctx, `SELECT id, username, wallet, created_at, updated_at FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *userRepository) Create(ctx context.Context, id int64, username string, wallet int64) (*entities.User, error) {
	query := `
		INSERT INTO users (id, username, wallet)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	user := &entities.User{
		ID:       id,
		Username: username,
		Wallet:   wallet,
	}
	err := r.q.QueryRow(ctx, query, id, username, wallet).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapError(err, "failed to create user %d", id)
	}

	return user, nil
}

func (r *userRepository) UpdateWallet(ctx context.Context, id int64, wallet int64) error {
	query := `
		UPDATE users
		SET wallet = $1, updated_at = NOW()
		WHERE id = $2`

	result, err := r.q.Exec(ctx, query, wallet, id)
	if err != nil {
		return mapError(err, "failed to update wallet for user %d", id)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", entities.ErrUserNotFound, id)
	}

	return nil
}

func (r *userRepository) get(ctx context.Context, query string, id int64) (*entities.User, error) {
	var user entities.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Wallet,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "failed to get user %d", id)
	}

	return &user, nil
}
