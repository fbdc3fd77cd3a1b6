package domain

import "time"

const PatientDiagnosticStatusActive = "active"

// PatientDiagnostic patient_diagnostics table, UNIQUE(patient_id, diagnostic_id)
type PatientDiagnostic struct {
	ID           string    `db:"id" json:"id"`
	PatientID    string    `db:"patient_id" json:"patient_id"`
	DiagnosticID string    `db:"diagnostic_id" json:"diagnostic_id"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	// Joined from diagnostics; nil when the diagnostic row is gone.
	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`
}
