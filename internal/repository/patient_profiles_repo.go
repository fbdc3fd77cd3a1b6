package repository

import (
	"context"

	"fluxia/internal/domain"
)

// PatientProfilesRepository patient_profiles table
type PatientProfilesRepository interface {
	GetProfile(ctx context.Context, id string) (*domain.PatientProfile, error)
	GetByUserID(ctx context.Context, userID string) (*domain.PatientProfile, error)
	// GetByEmail matches case-insensitively; the oldest profile wins.
	GetByEmail(ctx context.Context, email string) (*domain.PatientProfile, error)
	GetByFullName(ctx context.Context, fullName string) (*domain.PatientProfile, error)
	ListProfiles(ctx context.Context) ([]*domain.PatientProfile, error)
	// ListUnlinked returns profiles with an email but no user_id.
	ListUnlinked(ctx context.Context) ([]*domain.PatientProfile, error)
	CreateProfile(ctx context.Context, profile *domain.PatientProfile) (string, error)
	// LinkUser sets user_id; with onlyIfUnlinked a linked row is left alone and ErrNotFound returned.
	LinkUser(ctx context.Context, id, userID string, onlyIfUnlinked bool) error
}
