package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/notify"
	"fluxia/internal/repository"
	"fluxia/internal/schedule"
	"fluxia/internal/store"
)

const (
	DefaultDispatchInterval = 15 * time.Minute
	notifiedKeyPrefix       = "fluxia:notified:"
	notifiedKeyTTL          = 36 * time.Hour
)

// Dispatcher periodically pushes "questions pending" events, at most one per
// patient per day.
type Dispatcher struct {
	assignments   repository.PatientDiagnosticsRepository
	notifications repository.NotificationStatusRepository
	pending       *NotificationService
	kv            store.KV
	publisher     notify.Publisher
	clock         *schedule.Clock
	interval      time.Duration
	logger        *zap.Logger
}

func NewDispatcher(
	assignments repository.PatientDiagnosticsRepository,
	notifications repository.NotificationStatusRepository,
	pending *NotificationService,
	kv store.KV,
	publisher notify.Publisher,
	clock *schedule.Clock,
	interval time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	if interval <= 0 {
		interval = DefaultDispatchInterval
	}
	return &Dispatcher{
		assignments:   assignments,
		notifications: notifications,
		pending:       pending,
		kv:            kv,
		publisher:     publisher,
		clock:         clock,
		interval:      interval,
		logger:        logger,
	}
}

// Run dispatches immediately and then every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Notification dispatcher started", zap.Duration("interval", d.interval))
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if sent, err := d.RunOnce(ctx); err != nil {
			d.logger.Error("Notification cycle failed", zap.Error(err))
		} else if sent > 0 {
			d.logger.Info("Notification cycle finished", zap.Int("sent", sent))
		}
		select {
		case <-ctx.Done():
			d.logger.Info("Notification dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

func notifiedKey(patientID, date string) string {
	return notifiedKeyPrefix + patientID + ":" + date
}

// RunOnce performs one cycle and returns how many patients were notified.
// Per-patient failures are logged and skipped.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	patients, err := d.assignments.ListActivePatientIDs(ctx)
	if err != nil {
		return 0, err
	}
	now := d.clock.Now()
	_, date := d.clock.Day(now)

	sent := 0
	for _, patientID := range patients {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if d.notifyPatient(ctx, patientID, date, now) {
			sent++
		}
	}
	return sent, nil
}

func (d *Dispatcher) notifyPatient(ctx context.Context, patientID, date string, now time.Time) bool {
	log := d.logger.With(zap.String("patient_id", patientID), zap.String("date", date))

	items, err := d.pending.Due(ctx, patientID, now)
	if err != nil {
		log.Warn("Failed to compute due diagnostics", zap.Error(err))
		return false
	}
	if len(items) == 0 {
		return false
	}

	key := notifiedKey(patientID, date)
	first, err := d.kv.SetNX(ctx, key, now.UTC().Format(time.RFC3339), notifiedKeyTTL)
	if err != nil {
		log.Warn("Failed to claim notification slot", zap.Error(err))
		return false
	}
	if !first {
		return false
	}

	ev := notify.Event{PatientID: patientID, Date: date, Pending: items}
	if err := d.publisher.Publish(ctx, ev); err != nil {
		var partial *notify.PartialError
		if !errors.As(err, &partial) {
			log.Error("Failed to publish notification", zap.Error(err))
			if err := d.kv.Del(ctx, key); err != nil {
				log.Warn("Failed to release notification slot", zap.Error(err))
			}
			return false
		}
		// Keep the slot: a retry would repeat the channels that delivered.
		log.Warn("Notification partially published", zap.Int("delivered", partial.Delivered), zap.Error(err))
	}

	notifiedAt := now
	for _, it := range items {
		if err := d.notifications.Upsert(ctx, &domain.NotificationStatus{
			PatientID:        patientID,
			DiagnosticID:     it.ID,
			NotificationDate: date,
			NotifiedAt:       &notifiedAt,
		}); err != nil {
			log.Warn("Failed to record notification", zap.String("diagnostic_id", it.ID), zap.Error(err))
		}
	}
	log.Info("Patient notified", zap.Int("pending", len(items)))
	return true
}
