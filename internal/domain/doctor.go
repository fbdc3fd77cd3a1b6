package domain

import "time"

// Doctor doctors table
type Doctor struct {
	ID        string    `db:"id" json:"id"`
	DoctorID  string    `db:"doctor_id" json:"doctor_id"` // display id, DOC####, UNIQUE
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LinkedTo reports whether the doctor row already points at userID.
func (d *Doctor) LinkedTo(userID string) bool {
	return d.UserID != nil && *d.UserID == userID
}
