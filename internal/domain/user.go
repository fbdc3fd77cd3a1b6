package domain

import "time"

// User auth identity (users table). Doctors and patient profiles link to it via user_id.
type User struct {
	UserID       string    `db:"user_id" json:"id"`
	Email        string    `db:"email" json:"email"`                   // lowercase, UNIQUE
	PasswordHash []byte    `db:"password_hash" json:"-"`               // bcrypt, nullable (link-only accounts)
	FullName     string    `db:"full_name" json:"full_name,omitempty"` // nullable
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// HasPassword reports whether the user can sign in with email/password.
func (u *User) HasPassword() bool {
	return u != nil && len(u.PasswordHash) > 0
}
