package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/repository"
)

// AssignmentService links patient profiles to diagnostics.
type AssignmentService struct {
	diagnostics repository.DiagnosticsRepository
	profiles    repository.PatientProfilesRepository
	assignments repository.PatientDiagnosticsRepository
	logger      *zap.Logger
}

func NewAssignmentService(
	diagnostics repository.DiagnosticsRepository,
	profiles repository.PatientProfilesRepository,
	assignments repository.PatientDiagnosticsRepository,
	logger *zap.Logger,
) *AssignmentService {
	return &AssignmentService{
		diagnostics: diagnostics,
		profiles:    profiles,
		assignments: assignments,
		logger:      logger,
	}
}

// PatientAssignment one row of the doctor's assignment screen.
type PatientAssignment struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	IsAssigned bool   `json:"isAssigned"`
}

// ownedDiagnostic loads id and checks that doctorUserID authored it.
func ownedDiagnostic(ctx context.Context, repo repository.DiagnosticsRepository, doctorUserID, id string) (*domain.Diagnostic, error) {
	if err := checkID(id, "diagnostic not found"); err != nil {
		return nil, err
	}
	d, err := repo.GetDiagnostic(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "get diagnostic", "diagnostic not found")
	}
	if d.DoctorID != doctorUserID {
		return nil, newError(ErrNotFound, "diagnostic not found")
	}
	return d, nil
}

// ListPatients returns every patient with its assignment flag. search filters
// case-insensitively on email or full name.
func (s *AssignmentService) ListPatients(ctx context.Context, doctorUserID, diagnosticID, search string) ([]PatientAssignment, error) {
	if _, err := ownedDiagnostic(ctx, s.diagnostics, doctorUserID, diagnosticID); err != nil {
		return nil, err
	}
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	assigned, err := s.assignments.ListForDiagnostic(ctx, diagnosticID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	isAssigned := make(map[string]bool, len(assigned))
	for _, a := range assigned {
		isAssigned[a.PatientID] = true
	}

	search = strings.ToLower(strings.TrimSpace(search))
	out := []PatientAssignment{}
	for _, p := range profiles {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Email), search) &&
			!strings.Contains(strings.ToLower(p.FullName), search) {
			continue
		}
		out = append(out, PatientAssignment{
			ID:         p.ID,
			FullName:   p.FullName,
			Email:      p.Email,
			IsAssigned: isAssigned[p.ID],
		})
	}
	return out, nil
}

func (s *AssignmentService) Assign(ctx context.Context, doctorUserID, diagnosticID, patientID string) error {
	if _, err := ownedDiagnostic(ctx, s.diagnostics, doctorUserID, diagnosticID); err != nil {
		return err
	}
	if err := checkID(patientID, "patient not found"); err != nil {
		return err
	}
	if _, err := s.profiles.GetProfile(ctx, patientID); err != nil {
		return fromRepo(err, "get patient", "patient not found")
	}
	pd := &domain.PatientDiagnostic{PatientID: patientID, DiagnosticID: diagnosticID}
	if _, err := s.assignments.Create(ctx, pd); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return newError(ErrConflict, "patient is already assigned")
		}
		return fromRepo(err, "assign patient", "patient not found")
	}
	s.logger.Info("Patient assigned",
		zap.String("patient_id", patientID),
		zap.String("diagnostic_id", diagnosticID),
	)
	return nil
}

func (s *AssignmentService) Unassign(ctx context.Context, doctorUserID, diagnosticID, patientID string) error {
	if _, err := ownedDiagnostic(ctx, s.diagnostics, doctorUserID, diagnosticID); err != nil {
		return err
	}
	if err := checkID(patientID, "patient is not assigned"); err != nil {
		return err
	}
	if err := s.assignments.Delete(ctx, patientID, diagnosticID); err != nil {
		return fromRepo(err, "unassign patient", "patient is not assigned")
	}
	s.logger.Info("Patient unassigned",
		zap.String("patient_id", patientID),
		zap.String("diagnostic_id", diagnosticID),
	)
	return nil
}

// Ensure creates the assignment when missing. Safe to call repeatedly.
func (s *AssignmentService) Ensure(ctx context.Context, patientID, diagnosticID string) error {
	_, err := s.assignments.Get(ctx, patientID, diagnosticID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("get assignment: %w", err)
	}
	_, err = s.assignments.Create(ctx, &domain.PatientDiagnostic{
		PatientID:    patientID,
		DiagnosticID: diagnosticID,
		Status:       domain.PatientDiagnosticStatusActive,
	})
	if err != nil && !errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}
