package repository

import (
	"context"
	"database/sql"
	"fmt"

	"fluxia/internal/domain"
)

type PostgresPatientDiagnosticsRepository struct {
	db *sql.DB
}

func NewPostgresPatientDiagnosticsRepository(db *sql.DB) *PostgresPatientDiagnosticsRepository {
	return &PostgresPatientDiagnosticsRepository{db: db}
}

var _ PatientDiagnosticsRepository = (*PostgresPatientDiagnosticsRepository)(nil)

const patientDiagnosticColumns = `pd.id::text, pd.patient_id::text, pd.diagnostic_id::text, pd.status, pd.created_at`

func scanPatientDiagnostic(row interface{ Scan(...any) error }) (*domain.PatientDiagnostic, error) {
	var pd domain.PatientDiagnostic
	if err := row.Scan(&pd.ID, &pd.PatientID, &pd.DiagnosticID, &pd.Status, &pd.CreatedAt); err != nil {
		return nil, err
	}
	return &pd, nil
}

func (r *PostgresPatientDiagnosticsRepository) ListForPatient(ctx context.Context, patientID string) ([]*domain.PatientDiagnostic, error) {
	query := `
		SELECT ` + patientDiagnosticColumns + `,
			d.id::text, d.doctor_id::text, d.name, d.categories, d.final_messages, d.schedule_days,
			d.notification_time, d.duration_days, d.chat_id, d.created_at, d.updated_at
		FROM patient_diagnostics pd
		JOIN diagnostics d ON d.id = pd.diagnostic_id
		WHERE pd.patient_id = $1
		ORDER BY pd.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient diagnostics: %w", err)
	}
	defer rows.Close()

	out := []*domain.PatientDiagnostic{}
	for rows.Next() {
		var pd domain.PatientDiagnostic
		var diag *domain.Diagnostic
		// Scan the assignment columns, then hand the rest to scanDiagnostic.
		diag, err = scanDiagnostic(scanFunc(func(dest ...any) error {
			all := append([]any{&pd.ID, &pd.PatientID, &pd.DiagnosticID, &pd.Status, &pd.CreatedAt}, dest...)
			return rows.Scan(all...)
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient diagnostic: %w", err)
		}
		pd.Diagnostic = diag
		out = append(out, &pd)
	}
	return out, rows.Err()
}

// scanFunc adapts a closure to the Scan interface used by the scan helpers.
type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

func (r *PostgresPatientDiagnosticsRepository) ListForDiagnostic(ctx context.Context, diagnosticID string) ([]*domain.PatientDiagnostic, error) {
	query := `SELECT ` + patientDiagnosticColumns + `
		FROM patient_diagnostics pd
		WHERE pd.diagnostic_id = $1
		ORDER BY pd.created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, diagnosticID)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostic patients: %w", err)
	}
	defer rows.Close()

	out := []*domain.PatientDiagnostic{}
	for rows.Next() {
		pd, err := scanPatientDiagnostic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient diagnostic: %w", err)
		}
		out = append(out, pd)
	}
	return out, rows.Err()
}

func (r *PostgresPatientDiagnosticsRepository) Get(ctx context.Context, patientID, diagnosticID string) (*domain.PatientDiagnostic, error) {
	query := `SELECT ` + patientDiagnosticColumns + `
		FROM patient_diagnostics pd
		WHERE pd.patient_id = $1 AND pd.diagnostic_id = $2`
	pd, err := scanPatientDiagnostic(r.db.QueryRowContext(ctx, query, patientID, diagnosticID))
	if err != nil {
		return nil, getErr("patient diagnostic", err)
	}
	return pd, nil
}

func (r *PostgresPatientDiagnosticsRepository) Create(ctx context.Context, pd *domain.PatientDiagnostic) (string, error) {
	if pd.Status == "" {
		pd.Status = domain.PatientDiagnosticStatusActive
	}
	query := `
		INSERT INTO patient_diagnostics (patient_id, diagnostic_id, status)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at
	`
	err := r.db.QueryRowContext(ctx, query, pd.PatientID, pd.DiagnosticID, pd.Status).Scan(&pd.ID, &pd.CreatedAt)
	if err != nil {
		return "", writeErr("create", "patient diagnostic", err)
	}
	return pd.ID, nil
}

func (r *PostgresPatientDiagnosticsRepository) Delete(ctx context.Context, patientID, diagnosticID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM patient_diagnostics WHERE patient_id = $1 AND diagnostic_id = $2`,
		patientID, diagnosticID)
	if err != nil {
		return writeErr("delete", "patient diagnostic", err)
	}
	return requireAffected(res, "patient diagnostic")
}

func (r *PostgresPatientDiagnosticsRepository) ListActivePatientIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT patient_id::text FROM patient_diagnostics WHERE status = $1`,
		domain.PatientDiagnosticStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active patients: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan patient id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
