package repository

import (
	"context"

	"fluxia/internal/domain"
)

// DoctorsRepository doctors table
type DoctorsRepository interface {
	// ListDoctors newest first.
	ListDoctors(ctx context.Context) ([]*domain.Doctor, error)
	GetDoctor(ctx context.Context, id string) (*domain.Doctor, error)
	// GetByDisplayID looks up by the DOC#### display id.
	GetByDisplayID(ctx context.Context, displayID string) (*domain.Doctor, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Doctor, error)
	ListDisplayIDs(ctx context.Context) ([]string, error)
	CreateDoctor(ctx context.Context, doctor *domain.Doctor) (string, error)
	LinkUser(ctx context.Context, id, userID string) error
}
