package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fluxia/internal/domain"
)

type PostgresPatientProfilesRepository struct {
	db *sql.DB
}

func NewPostgresPatientProfilesRepository(db *sql.DB) *PostgresPatientProfilesRepository {
	return &PostgresPatientProfilesRepository{db: db}
}

var _ PatientProfilesRepository = (*PostgresPatientProfilesRepository)(nil)

const profileColumns = `
	id::text, full_name, date_of_birth, phone, email, occupation,
	presentation, purpose, profile_image_url, user_id::text, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*domain.PatientProfile, error) {
	var (
		p                                                    domain.PatientProfile
		dob, phone, email, occupation, presentation, purpose sql.NullString
		imageURL, userID                                     sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.FullName,
		&dob,
		&phone,
		&email,
		&occupation,
		&presentation,
		&purpose,
		&imageURL,
		&userID,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.DateOfBirth = dob.String
	p.Phone = phone.String
	p.Email = email.String
	p.Occupation = occupation.String
	p.Presentation = presentation.String
	p.Purpose = purpose.String
	p.ProfileImageURL = ptrString(imageURL)
	p.UserID = ptrString(userID)
	return &p, nil
}

func (r *PostgresPatientProfilesRepository) getOne(ctx context.Context, where, arg string) (*domain.PatientProfile, error) {
	if arg == "" {
		return nil, getErr("patient profile", sql.ErrNoRows)
	}
	query := `SELECT ` + profileColumns + ` FROM patient_profiles WHERE ` + where + ` ORDER BY created_at ASC LIMIT 1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, getErr("patient profile", err)
	}
	return p, nil
}

func (r *PostgresPatientProfilesRepository) GetProfile(ctx context.Context, id string) (*domain.PatientProfile, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *PostgresPatientProfilesRepository) GetByUserID(ctx context.Context, userID string) (*domain.PatientProfile, error) {
	return r.getOne(ctx, "user_id = $1", userID)
}

func (r *PostgresPatientProfilesRepository) GetByEmail(ctx context.Context, email string) (*domain.PatientProfile, error) {
	return r.getOne(ctx, "lower(email) = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *PostgresPatientProfilesRepository) GetByFullName(ctx context.Context, fullName string) (*domain.PatientProfile, error) {
	return r.getOne(ctx, "full_name = $1", strings.TrimSpace(fullName))
}

func (r *PostgresPatientProfilesRepository) list(ctx context.Context, query string) ([]*domain.PatientProfile, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*domain.PatientProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *PostgresPatientProfilesRepository) ListProfiles(ctx context.Context) ([]*domain.PatientProfile, error) {
	return r.list(ctx, `SELECT `+profileColumns+` FROM patient_profiles ORDER BY full_name ASC`)
}

func (r *PostgresPatientProfilesRepository) ListUnlinked(ctx context.Context) ([]*domain.PatientProfile, error) {
	return r.list(ctx, `
		SELECT `+profileColumns+`
		FROM patient_profiles
		WHERE user_id IS NULL AND email IS NOT NULL AND email <> ''
		ORDER BY created_at ASC`)
}

func (r *PostgresPatientProfilesRepository) CreateProfile(ctx context.Context, p *domain.PatientProfile) (string, error) {
	query := `
		INSERT INTO patient_profiles (
			full_name, date_of_birth, phone, email, occupation,
			presentation, purpose, profile_image_url, user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		strings.TrimSpace(p.FullName),
		nullString(p.DateOfBirth),
		nullString(p.Phone),
		nullString(strings.ToLower(strings.TrimSpace(p.Email))),
		nullString(p.Occupation),
		nullString(p.Presentation),
		nullString(p.Purpose),
		nullPtr(p.ProfileImageURL),
		nullPtr(p.UserID),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return "", writeErr("create", "patient profile", err)
	}
	return p.ID, nil
}

func (r *PostgresPatientProfilesRepository) LinkUser(ctx context.Context, id, userID string, onlyIfUnlinked bool) error {
	query := `UPDATE patient_profiles SET user_id = $2 WHERE id = $1`
	if onlyIfUnlinked {
		query += ` AND user_id IS NULL`
	}
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return writeErr("update", "patient profile", err)
	}
	return requireAffected(res, "patient profile")
}
