package domain

import "time"

// PatientProfile patient_profiles table
type PatientProfile struct {
	ID              string    `db:"id" json:"id"`
	FullName        string    `db:"full_name" json:"full_name"` // UNIQUE, used by name login
	DateOfBirth     string    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Phone           string    `db:"phone" json:"phone,omitempty"`
	Email           string    `db:"email" json:"email,omitempty"`
	Occupation      string    `db:"occupation" json:"occupation,omitempty"`
	Presentation    string    `db:"presentation" json:"presentation,omitempty"`
	Purpose         string    `db:"purpose" json:"purpose,omitempty"`
	ProfileImageURL *string   `db:"profile_image_url" json:"profile_image_url,omitempty"`
	UserID          *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// IsLinked reports whether the profile has an auth identity.
func (p *PatientProfile) IsLinked() bool {
	return p.UserID != nil && *p.UserID != ""
}
