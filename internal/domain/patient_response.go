package domain

import "time"

// DateLayout is the YYYY-MM-DD layout of response_date / notification_date.
const DateLayout = "2006-01-02"

// PatientResponse patient_responses table
type PatientResponse struct {
	ID           string    `db:"id" json:"id"`
	PatientID    string    `db:"patient_id" json:"patient_id"`
	DiagnosticID string    `db:"diagnostic_id" json:"diagnostic_id"`
	CategoryName string    `db:"category_name" json:"category"`
	QuestionText string    `db:"question_text" json:"question"`
	Response     string    `db:"response" json:"response"`
	ResponseDate string    `db:"response_date" json:"date"` // YYYY-MM-DD
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Key returns the question this response answers.
func (r *PatientResponse) Key() QuestionKey {
	return QuestionKey{Category: r.CategoryName, Question: r.QuestionText}
}

// NotificationStatus notification_status table, PRIMARY KEY(patient_id, diagnostic_id, notification_date)
type NotificationStatus struct {
	PatientID        string     `db:"patient_id"`
	DiagnosticID     string     `db:"diagnostic_id"`
	NotificationDate string     `db:"notification_date"`
	NotificationRead bool       `db:"notification_read"`
	NotifiedAt       *time.Time `db:"notified_at"`
}
