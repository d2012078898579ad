package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"license_notifier/internal/domain/user"
)

// Custom errors
var ErrUserNotFound = fmt.Errorf("user not found")

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) FirstAdmin(ctx context.Context) (*user.User, error) {
	query := `SELECT id, email, COALESCE(name, ''), role, created_at
               FROM users
               ORDER BY (role = $1) DESC, created_at ASC, id ASC
               LIMIT 1`
	u := &user.User{}
	err := r.db.QueryRowContext(ctx, query, user.RoleAdmin).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting first admin user: %w", err)
	}
	return u, nil
}
