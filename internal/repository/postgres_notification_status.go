package repository

import (
	"context"
	"database/sql"
	"fmt"

	"fluxia/internal/domain"
)

type PostgresNotificationStatusRepository struct {
	db *sql.DB
}

func NewPostgresNotificationStatusRepository(db *sql.DB) *PostgresNotificationStatusRepository {
	return &PostgresNotificationStatusRepository{db: db}
}

var _ NotificationStatusRepository = (*PostgresNotificationStatusRepository)(nil)

func (r *PostgresNotificationStatusRepository) Upsert(ctx context.Context, s *domain.NotificationStatus) error {
	query := `
		INSERT INTO notification_status (
			patient_id, diagnostic_id, notification_date, notification_read, notified_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id, diagnostic_id, notification_date) DO UPDATE SET
			notification_read = notification_status.notification_read OR EXCLUDED.notification_read,
			notified_at = COALESCE(EXCLUDED.notified_at, notification_status.notified_at)
	`
	var notifiedAt sql.NullTime
	if s.NotifiedAt != nil {
		notifiedAt = sql.NullTime{Time: *s.NotifiedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		s.PatientID, s.DiagnosticID, s.NotificationDate, s.NotificationRead, notifiedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert notification status: %w", err)
	}
	return nil
}

func (r *PostgresNotificationStatusRepository) Get(ctx context.Context, patientID, diagnosticID, date string) (*domain.NotificationStatus, error) {
	query := `
		SELECT patient_id::text, diagnostic_id::text, notification_date::text, notification_read, notified_at
		FROM notification_status
		WHERE patient_id = $1 AND diagnostic_id = $2 AND notification_date = $3
	`
	var (
		s          domain.NotificationStatus
		notifiedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, patientID, diagnosticID, date).
		Scan(&s.PatientID, &s.DiagnosticID, &s.NotificationDate, &s.NotificationRead, &notifiedAt)
	if err != nil {
		return nil, getErr("notification status", err)
	}
	if notifiedAt.Valid {
		t := notifiedAt.Time
		s.NotifiedAt = &t
	}
	return &s, nil
}
