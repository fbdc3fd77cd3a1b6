package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fluxia/internal/domain"
)

type PostgresDoctorsRepository struct {
	db *sql.DB
}

func NewPostgresDoctorsRepository(db *sql.DB) *PostgresDoctorsRepository {
	return &PostgresDoctorsRepository{db: db}
}

var _ DoctorsRepository = (*PostgresDoctorsRepository)(nil)

const doctorColumns = `id::text, doctor_id, name, email, user_id::text, created_at`

func scanDoctor(row interface{ Scan(...any) error }) (*domain.Doctor, error) {
	var (
		d      domain.Doctor
		userID sql.NullString
	)
	if err := row.Scan(&d.ID, &d.DoctorID, &d.Name, &d.Email, &userID, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.UserID = ptrString(userID)
	return &d, nil
}

func (r *PostgresDoctorsRepository) getOne(ctx context.Context, where string, arg string) (*domain.Doctor, error) {
	if arg == "" {
		return nil, getErr("doctor", sql.ErrNoRows)
	}
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE ` + where + ` LIMIT 1`
	d, err := scanDoctor(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, getErr("doctor", err)
	}
	return d, nil
}

func (r *PostgresDoctorsRepository) GetDoctor(ctx context.Context, id string) (*domain.Doctor, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *PostgresDoctorsRepository) GetByDisplayID(ctx context.Context, displayID string) (*domain.Doctor, error) {
	return r.getOne(ctx, "doctor_id = $1", strings.TrimSpace(displayID))
}

func (r *PostgresDoctorsRepository) GetByUserID(ctx context.Context, userID string) (*domain.Doctor, error) {
	return r.getOne(ctx, "user_id = $1", userID)
}

func (r *PostgresDoctorsRepository) ListDoctors(ctx context.Context) ([]*domain.Doctor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+doctorColumns+` FROM doctors ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	defer rows.Close()

	doctors := []*domain.Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func (r *PostgresDoctorsRepository) ListDisplayIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT doctor_id FROM doctors`)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan doctor id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresDoctorsRepository) CreateDoctor(ctx context.Context, doctor *domain.Doctor) (string, error) {
	query := `
		INSERT INTO doctors (doctor_id, name, email, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		doctor.DoctorID,
		doctor.Name,
		strings.ToLower(strings.TrimSpace(doctor.Email)),
		nullPtr(doctor.UserID),
	).Scan(&doctor.ID, &doctor.CreatedAt)
	if err != nil {
		return "", writeErr("create", "doctor", err)
	}
	return doctor.ID, nil
}

func (r *PostgresDoctorsRepository) LinkUser(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE doctors SET user_id = $2 WHERE id = $1`, id, userID)
	if err != nil {
		return writeErr("update", "doctor", err)
	}
	return requireAffected(res, "doctor")
}
