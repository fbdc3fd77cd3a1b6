package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fluxia/internal/domain"
)

type PostgresUsersRepository struct {
	db *sql.DB
}

func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `user_id::text, email, password_hash, full_name, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u        domain.User
		fullName sql.NullString
	)
	if err := row.Scan(&u.UserID, &u.Email, &u.PasswordHash, &fullName, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.FullName = fullName.String
	return &u, nil
}

func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, getErr("user", sql.ErrNoRows)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, getErr("user", err)
	}
	return u, nil
}

func (r *PostgresUsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, getErr("user", sql.ErrNoRows)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, getErr("user", err)
	}
	return u, nil
}

func (r *PostgresUsersRepository) ListUsers(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresUsersRepository) CreateUser(ctx context.Context, user *domain.User) (string, error) {
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return "", fmt.Errorf("email is required")
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	var hash any
	if len(user.PasswordHash) > 0 {
		hash = user.PasswordHash
	}
	query := `
		INSERT INTO users (email, password_hash, full_name)
		VALUES ($1, $2, $3)
		RETURNING user_id::text, created_at
	`
	err := r.db.QueryRowContext(ctx, query, user.Email, hash, nullString(user.FullName)).
		Scan(&user.UserID, &user.CreatedAt)
	if err != nil {
		return "", writeErr("create", "user", err)
	}
	return user.UserID, nil
}

func (r *PostgresUsersRepository) UpdatePassword(ctx context.Context, userID string, hash []byte) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE user_id = $1`, userID, hash)
	if err != nil {
		return writeErr("update", "user", err)
	}
	return requireAffected(res, "user")
}
