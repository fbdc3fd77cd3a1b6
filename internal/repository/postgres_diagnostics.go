package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"fluxia/internal/domain"
)

type PostgresDiagnosticsRepository struct {
	db *sql.DB
}

func NewPostgresDiagnosticsRepository(db *sql.DB) *PostgresDiagnosticsRepository {
	return &PostgresDiagnosticsRepository{db: db}
}

var _ DiagnosticsRepository = (*PostgresDiagnosticsRepository)(nil)

const diagnosticColumns = `
	id::text, doctor_id::text, name, categories, final_messages, schedule_days,
	notification_time, duration_days, chat_id, created_at, updated_at`

func scanDiagnostic(row interface{ Scan(...any) error }) (*domain.Diagnostic, error) {
	var (
		d          domain.Diagnostic
		categories []byte
		days       []string
	)
	err := row.Scan(
		&d.ID,
		&d.DoctorID,
		&d.Name,
		&categories,
		pq.Array(&d.FinalMessages),
		pq.Array(&days),
		&d.NotificationTime,
		&d.DurationDays,
		&d.ChatID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if d.Categories, err = unmarshalCategories(categories); err != nil {
		return nil, err
	}
	d.ScheduleDays = make([]domain.Weekday, 0, len(days))
	for _, s := range days {
		d.ScheduleDays = append(d.ScheduleDays, domain.Weekday(strings.ToLower(s)))
	}
	if d.FinalMessages == nil {
		d.FinalMessages = []string{}
	}
	return &d, nil
}

func dayStrings(days []domain.Weekday) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}

func (r *PostgresDiagnosticsRepository) getOne(ctx context.Context, where, arg string) (*domain.Diagnostic, error) {
	if arg == "" {
		return nil, getErr("diagnostic", sql.ErrNoRows)
	}
	query := `SELECT ` + diagnosticColumns + ` FROM diagnostics WHERE ` + where
	d, err := scanDiagnostic(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, getErr("diagnostic", err)
	}
	return d, nil
}

func (r *PostgresDiagnosticsRepository) GetDiagnostic(ctx context.Context, id string) (*domain.Diagnostic, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *PostgresDiagnosticsRepository) GetByChatID(ctx context.Context, chatID string) (*domain.Diagnostic, error) {
	return r.getOne(ctx, "chat_id = $1", strings.TrimSpace(chatID))
}

func (r *PostgresDiagnosticsRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Diagnostic, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostics: %w", err)
	}
	defer rows.Close()

	out := []*domain.Diagnostic{}
	for rows.Next() {
		d, err := scanDiagnostic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresDiagnosticsRepository) ListByDoctor(ctx context.Context, doctorUserID string) ([]*domain.Diagnostic, error) {
	return r.list(ctx,
		`SELECT `+diagnosticColumns+` FROM diagnostics WHERE doctor_id = $1 ORDER BY created_at DESC`,
		doctorUserID)
}

func (r *PostgresDiagnosticsRepository) ListByChatFragment(ctx context.Context, fragment string) ([]*domain.Diagnostic, error) {
	if fragment == "" {
		return []*domain.Diagnostic{}, nil
	}
	return r.list(ctx,
		`SELECT `+diagnosticColumns+` FROM diagnostics WHERE strpos(lower(chat_id), lower($1)) > 0 ORDER BY created_at DESC`,
		fragment)
}

func (r *PostgresDiagnosticsRepository) CreateDiagnostic(ctx context.Context, d *domain.Diagnostic) (string, error) {
	categories, err := marshalCategories(d.Categories)
	if err != nil {
		return "", err
	}
	query := `
		INSERT INTO diagnostics (
			doctor_id, name, categories, final_messages, schedule_days,
			notification_time, duration_days, chat_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id::text, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		d.DoctorID,
		d.Name,
		categories,
		pq.Array(d.FinalMessages),
		pq.Array(dayStrings(d.ScheduleDays)),
		d.NotificationTime,
		d.DurationDays,
		d.ChatID,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return "", writeErr("create", "diagnostic", err)
	}
	return d.ID, nil
}

func (r *PostgresDiagnosticsRepository) UpdateDiagnostic(ctx context.Context, d *domain.Diagnostic) error {
	categories, err := marshalCategories(d.Categories)
	if err != nil {
		return err
	}
	query := `
		UPDATE diagnostics SET
			name = $3,
			categories = $4,
			final_messages = $5,
			schedule_days = $6,
			notification_time = $7,
			duration_days = $8,
			updated_at = NOW()
		WHERE id = $1 AND doctor_id = $2
		RETURNING updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		d.ID,
		d.DoctorID,
		d.Name,
		categories,
		pq.Array(d.FinalMessages),
		pq.Array(dayStrings(d.ScheduleDays)),
		d.NotificationTime,
		d.DurationDays,
	).Scan(&d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return getErr("diagnostic", err)
		}
		return writeErr("update", "diagnostic", err)
	}
	return nil
}

func (r *PostgresDiagnosticsRepository) DeleteDiagnostic(ctx context.Context, doctorUserID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM diagnostics WHERE id = $1 AND doctor_id = $2`, id, doctorUserID)
	if err != nil {
		return writeErr("delete", "diagnostic", err)
	}
	return requireAffected(res, "diagnostic")
}
