package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/export"
	"fluxia/internal/repository"
)

const (
	chatIDPrefix      = "CHAT_"
	chatIDLength      = 8
	chatIDAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	chatIDMaxAttempts = 5
)

// DiagnosticService doctor-side CRUD on diagnostics.
type DiagnosticService struct {
	diagnostics repository.DiagnosticsRepository
	profiles    repository.PatientProfilesRepository
	responses   repository.PatientResponsesRepository
	intN        func(n int) int
	logger      *zap.Logger
}

func NewDiagnosticService(
	diagnostics repository.DiagnosticsRepository,
	profiles repository.PatientProfilesRepository,
	responses repository.PatientResponsesRepository,
	logger *zap.Logger,
) *DiagnosticService {
	return &DiagnosticService{
		diagnostics: diagnostics,
		profiles:    profiles,
		responses:   responses,
		intN:        rand.IntN,
		logger:      logger,
	}
}

// DiagnosticInput create/update body.
type DiagnosticInput struct {
	Name             string            `json:"name"`
	Categories       []domain.Category `json:"categories"`
	FinalMessages    []string          `json:"final_messages"`
	ScheduleDays     []string          `json:"schedule_days"`
	NotificationTime string            `json:"notification_time"`
	DurationDays     int               `json:"duration_days"`
}

func (in DiagnosticInput) apply(d *domain.Diagnostic) error {
	d.Name = strings.TrimSpace(in.Name)
	d.Categories = make([]domain.Category, 0, len(in.Categories))
	for _, c := range in.Categories {
		qs := make([]string, 0, len(c.Questions))
		for _, q := range c.Questions {
			qs = append(qs, strings.TrimSpace(q))
		}
		d.Categories = append(d.Categories, domain.Category{Name: strings.TrimSpace(c.Name), Questions: qs})
	}
	d.FinalMessages = make([]string, 0, len(in.FinalMessages))
	for _, m := range in.FinalMessages {
		d.FinalMessages = append(d.FinalMessages, strings.TrimSpace(m))
	}
	d.ScheduleDays = make([]domain.Weekday, 0, len(in.ScheduleDays))
	for _, day := range in.ScheduleDays {
		d.ScheduleDays = append(d.ScheduleDays, domain.Weekday(day))
	}
	d.NotificationTime = strings.TrimSpace(in.NotificationTime)
	d.DurationDays = in.DurationDays
	d.ApplyDefaults()
	return fromValidation(d.Validate())
}

// NewChatID returns CHAT_ followed by 8 characters of [A-Z0-9].
func (s *DiagnosticService) NewChatID() string {
	var b strings.Builder
	b.WriteString(chatIDPrefix)
	for i := 0; i < chatIDLength; i++ {
		b.WriteByte(chatIDAlphabet[s.intN(len(chatIDAlphabet))])
	}
	return b.String()
}

func (s *DiagnosticService) Create(ctx context.Context, doctorUserID string, in DiagnosticInput) (*domain.Diagnostic, error) {
	if doctorUserID == "" {
		return nil, newError(ErrUnauthorized, "not signed in")
	}
	d := &domain.Diagnostic{DoctorID: doctorUserID}
	if err := in.apply(d); err != nil {
		return nil, err
	}

	var err error
	for attempt := 0; attempt < chatIDMaxAttempts; attempt++ {
		d.ChatID = s.NewChatID()
		if _, err = s.diagnostics.CreateDiagnostic(ctx, d); err == nil || !errors.Is(err, repository.ErrConflict) {
			break
		}
		s.logger.Warn("Chat id collision, retrying", zap.String("chat_id", d.ChatID))
	}
	if err != nil {
		return nil, fromRepo(err, "create diagnostic", "")
	}

	s.logger.Info("Diagnostic created",
		zap.String("diagnostic_id", d.ID),
		zap.String("doctor_id", doctorUserID),
		zap.String("chat_id", d.ChatID),
	)
	return d, nil
}

// List returns the doctor's diagnostics, newest first.
func (s *DiagnosticService) List(ctx context.Context, doctorUserID string) ([]*domain.Diagnostic, error) {
	list, err := s.diagnostics.ListByDoctor(ctx, doctorUserID)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	return list, nil
}

func (s *DiagnosticService) Get(ctx context.Context, doctorUserID, id string) (*domain.Diagnostic, error) {
	return ownedDiagnostic(ctx, s.diagnostics, doctorUserID, id)
}

// Update replaces the editable fields; chat id and author never change.
func (s *DiagnosticService) Update(ctx context.Context, doctorUserID, id string, in DiagnosticInput) (*domain.Diagnostic, error) {
	d, err := ownedDiagnostic(ctx, s.diagnostics, doctorUserID, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(d); err != nil {
		return nil, err
	}
	if err := s.diagnostics.UpdateDiagnostic(ctx, d); err != nil {
		return nil, fromRepo(err, "update diagnostic", "diagnostic not found")
	}
	s.logger.Info("Diagnostic updated", zap.String("diagnostic_id", id), zap.String("doctor_id", doctorUserID))
	return d, nil
}

func (s *DiagnosticService) Delete(ctx context.Context, doctorUserID, id string) error {
	if err := checkID(id, "diagnostic not found"); err != nil {
		return err
	}
	if err := s.diagnostics.DeleteDiagnostic(ctx, doctorUserID, id); err != nil {
		return fromRepo(err, "delete diagnostic", "diagnostic not found")
	}
	s.logger.Info("Diagnostic deleted", zap.String("diagnostic_id", id), zap.String("doctor_id", doctorUserID))
	return nil
}

// ExportResponses renders every response to the diagnostic as .xlsx and
// returns the workbook with a suggested file name.
func (s *DiagnosticService) ExportResponses(ctx context.Context, doctorUserID, id string) ([]byte, string, error) {
	d, err := ownedDiagnostic(ctx, s.diagnostics, doctorUserID, id)
	if err != nil {
		return nil, "", err
	}
	responses, err := s.responses.ListForDiagnostic(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("list responses: %w", err)
	}
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list patients: %w", err)
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.FullName
	}
	b, err := export.ResponsesWorkbook(d, names, responses)
	if err != nil {
		return nil, "", err
	}
	return b, d.ChatID + "-responses.xlsx", nil
}
