package repository

import (
	"context"
	"time"

	"fluxia/internal/domain"
)

// PatientResponsesRepository patient_responses table
type PatientResponsesRepository interface {
	// InsertResponses writes all rows in one transaction.
	InsertResponses(ctx context.Context, responses []*domain.PatientResponse) error
	// ListForPatientDiagnostic newest first.
	ListForPatientDiagnostic(ctx context.Context, patientID, diagnosticID string) ([]*domain.PatientResponse, error)
	// ListForDate returns responses dated date (YYYY-MM-DD).
	ListForDate(ctx context.Context, patientID, diagnosticID, date string) ([]*domain.PatientResponse, error)
	// ListForDiagnostic returns every patient's responses, oldest first.
	ListForDiagnostic(ctx context.Context, diagnosticID string) ([]*domain.PatientResponse, error)
	// LastResponseAt returns nil when the patient never answered.
	LastResponseAt(ctx context.Context, patientID, diagnosticID string) (*time.Time, error)
}
