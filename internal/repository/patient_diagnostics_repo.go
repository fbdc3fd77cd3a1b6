package repository

import (
	"context"

	"fluxia/internal/domain"
)

// PatientDiagnosticsRepository patient_diagnostics table (assignments)
type PatientDiagnosticsRepository interface {
	// ListForPatient joins each assignment with its diagnostic, newest assignment first.
	ListForPatient(ctx context.Context, patientID string) ([]*domain.PatientDiagnostic, error)
	ListForDiagnostic(ctx context.Context, diagnosticID string) ([]*domain.PatientDiagnostic, error)
	Get(ctx context.Context, patientID, diagnosticID string) (*domain.PatientDiagnostic, error)
	// Create returns ErrConflict when the pair already exists.
	Create(ctx context.Context, pd *domain.PatientDiagnostic) (string, error)
	Delete(ctx context.Context, patientID, diagnosticID string) error
	ListActivePatientIDs(ctx context.Context) ([]string, error)
}
