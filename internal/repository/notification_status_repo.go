package repository

import (
	"context"

	"fluxia/internal/domain"
)

// NotificationStatusRepository notification_status table, one row per patient/diagnostic/date
type NotificationStatusRepository interface {
	// Upsert sets notification_read and, when non-nil, notified_at.
	Upsert(ctx context.Context, status *domain.NotificationStatus) error
	Get(ctx context.Context, patientID, diagnosticID, date string) (*domain.NotificationStatus, error)
}
