package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/notify"
	"fluxia/internal/repository"
	"fluxia/internal/schedule"
)

// NotificationService computes which diagnostics still need answers today.
type NotificationService struct {
	assignments repository.PatientDiagnosticsRepository
	responses   repository.PatientResponsesRepository
	clock       *schedule.Clock
	logger      *zap.Logger
}

func NewNotificationService(
	assignments repository.PatientDiagnosticsRepository,
	responses repository.PatientResponsesRepository,
	clock *schedule.Clock,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		assignments: assignments,
		responses:   responses,
		clock:       clock,
		logger:      logger,
	}
}

// CheckResult JSON keys are consumed by the polling client.
type CheckResult struct {
	HasNotifications   bool                 `json:"hasNotifications"`
	PendingDiagnostics []notify.PendingItem `json:"pendingDiagnostics"`
}

func emptyCheck() CheckResult {
	return CheckResult{PendingDiagnostics: []notify.PendingItem{}}
}

// pending filters the patient's assignments by keep, then by unanswered questions.
func (s *NotificationService) pending(ctx context.Context, patientID string, now time.Time, keep func(*domain.Diagnostic) bool) ([]notify.PendingItem, error) {
	list, err := s.assignments.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	day, date := s.clock.Day(now)
	out := []notify.PendingItem{}
	for _, pd := range list {
		d := pd.Diagnostic
		if d == nil || !d.ScheduledOn(day) || !keep(d) {
			continue
		}
		today, err := s.responses.ListForDate(ctx, patientID, d.ID, date)
		if err != nil {
			return nil, fmt.Errorf("list today's responses: %w", err)
		}
		if schedule.PendingFor(d, today, day) {
			out = append(out, notify.PendingItem{ID: d.ID, Name: d.Name})
		}
	}
	return out, nil
}

// Pending diagnostics scheduled today with unanswered questions.
func (s *NotificationService) Pending(ctx context.Context, patientID string, now time.Time) ([]notify.PendingItem, error) {
	return s.pending(ctx, patientID, now, func(*domain.Diagnostic) bool { return true })
}

// Due is Pending restricted to diagnostics whose notification time has passed
// and which have not expired.
func (s *NotificationService) Due(ctx context.Context, patientID string, now time.Time) ([]notify.PendingItem, error) {
	return s.pending(ctx, patientID, now, func(d *domain.Diagnostic) bool {
		return s.clock.NotificationDue(d, now)
	})
}

// Check never fails: any problem yields an empty result.
func (s *NotificationService) Check(ctx context.Context, p *Principal) CheckResult {
	if p == nil || p.Patient == nil {
		return emptyCheck()
	}
	items, err := s.Pending(ctx, p.Patient.ID, s.clock.Now())
	if err != nil {
		s.logger.Warn("Notification check failed", zap.String("patient_id", p.Patient.ID), zap.Error(err))
		return emptyCheck()
	}
	return CheckResult{HasNotifications: len(items) > 0, PendingDiagnostics: items}
}
