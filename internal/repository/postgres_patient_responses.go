package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fluxia/internal/domain"
)

type PostgresPatientResponsesRepository struct {
	db *sql.DB
}

func NewPostgresPatientResponsesRepository(db *sql.DB) *PostgresPatientResponsesRepository {
	return &PostgresPatientResponsesRepository{db: db}
}

var _ PatientResponsesRepository = (*PostgresPatientResponsesRepository)(nil)

const responseColumns = `
	id::text, patient_id::text, diagnostic_id::text, category_name,
	question_text, response, response_date::text, created_at`

func scanResponse(row interface{ Scan(...any) error }) (*domain.PatientResponse, error) {
	var pr domain.PatientResponse
	err := row.Scan(
		&pr.ID,
		&pr.PatientID,
		&pr.DiagnosticID,
		&pr.CategoryName,
		&pr.QuestionText,
		&pr.Response,
		&pr.ResponseDate,
		&pr.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *PostgresPatientResponsesRepository) InsertResponses(ctx context.Context, responses []*domain.PatientResponse) error {
	if len(responses) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO patient_responses (
			patient_id, diagnostic_id, category_name, question_text, response, response_date
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`
	for _, pr := range responses {
		err := tx.QueryRowContext(ctx, query,
			pr.PatientID,
			pr.DiagnosticID,
			pr.CategoryName,
			pr.QuestionText,
			pr.Response,
			pr.ResponseDate,
		).Scan(&pr.ID, &pr.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert response: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit responses: %w", err)
	}
	return nil
}

func (r *PostgresPatientResponsesRepository) list(ctx context.Context, query string, args ...any) ([]*domain.PatientResponse, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	out := []*domain.PatientResponse{}
	for rows.Next() {
		pr, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (r *PostgresPatientResponsesRepository) ListForPatientDiagnostic(ctx context.Context, patientID, diagnosticID string) ([]*domain.PatientResponse, error) {
	return r.list(ctx, `
		SELECT `+responseColumns+`
		FROM patient_responses
		WHERE patient_id = $1 AND diagnostic_id = $2
		ORDER BY created_at DESC`,
		patientID, diagnosticID)
}

func (r *PostgresPatientResponsesRepository) ListForDate(ctx context.Context, patientID, diagnosticID, date string) ([]*domain.PatientResponse, error) {
	return r.list(ctx, `
		SELECT `+responseColumns+`
		FROM patient_responses
		WHERE patient_id = $1 AND diagnostic_id = $2 AND response_date = $3
		ORDER BY created_at ASC`,
		patientID, diagnosticID, date)
}

func (r *PostgresPatientResponsesRepository) ListForDiagnostic(ctx context.Context, diagnosticID string) ([]*domain.PatientResponse, error) {
	return r.list(ctx, `
		SELECT `+responseColumns+`
		FROM patient_responses
		WHERE diagnostic_id = $1
		ORDER BY response_date ASC, created_at ASC`,
		diagnosticID)
}

func (r *PostgresPatientResponsesRepository) LastResponseAt(ctx context.Context, patientID, diagnosticID string) (*time.Time, error) {
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM patient_responses WHERE patient_id = $1 AND diagnostic_id = $2`,
		patientID, diagnosticID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to get last response: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}
