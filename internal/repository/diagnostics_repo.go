package repository

import (
	"context"

	"fluxia/internal/domain"
)

// DiagnosticsRepository diagnostics table
// categories is JSONB; final_messages and schedule_days are text[].
type DiagnosticsRepository interface {
	CreateDiagnostic(ctx context.Context, d *domain.Diagnostic) (string, error)
	GetDiagnostic(ctx context.Context, id string) (*domain.Diagnostic, error)
	GetByChatID(ctx context.Context, chatID string) (*domain.Diagnostic, error)
	// ListByDoctor newest first.
	ListByDoctor(ctx context.Context, doctorUserID string) ([]*domain.Diagnostic, error)
	// ListByChatFragment returns diagnostics whose chat_id contains fragment, ignoring case.
	ListByChatFragment(ctx context.Context, fragment string) ([]*domain.Diagnostic, error)
	// UpdateDiagnostic is scoped to the owning doctor; other rows report ErrNotFound.
	UpdateDiagnostic(ctx context.Context, d *domain.Diagnostic) error
	DeleteDiagnostic(ctx context.Context, doctorUserID, id string) error
}
