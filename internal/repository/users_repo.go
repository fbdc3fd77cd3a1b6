package repository

import (
	"context"

	"fluxia/internal/domain"
)

// UsersRepository auth identities
type UsersRepository interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	// CreateUser lowercases the email and returns the generated user_id.
	CreateUser(ctx context.Context, user *domain.User) (string, error)
	UpdatePassword(ctx context.Context, userID string, hash []byte) error
}
