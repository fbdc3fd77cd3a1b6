package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/repository"
)

const (
	doctorIDPrefix      = "DOC"
	doctorIDMin         = 1000
	doctorIDMax         = 9999
	doctorIDMaxAttempts = 100
	minPasswordLength   = 6
)

// AdminService operator tasks behind the admin token.
type AdminService struct {
	users    repository.UsersRepository
	doctors  repository.DoctorsRepository
	profiles repository.PatientProfilesRepository
	intN     func(n int) int
	logger   *zap.Logger
}

func NewAdminService(
	users repository.UsersRepository,
	doctors repository.DoctorsRepository,
	profiles repository.PatientProfilesRepository,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		users:    users,
		doctors:  doctors,
		profiles: profiles,
		intN:     rand.IntN,
		logger:   logger,
	}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// CreateUser creates a confirmed auth user with a password.
func (s *AdminService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalidf("a valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalidf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{Email: email, PasswordHash: hash, FullName: strings.TrimSpace(req.FullName)}
	if _, err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(ErrConflict, "a user with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("User created", zap.String("user_id", user.UserID))
	return user, nil
}

func (s *AdminService) ListDoctors(ctx context.Context) ([]*domain.Doctor, error) {
	doctors, err := s.doctors.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// GenerateDoctorID picks an unused DOC#### id with 1000 <= #### <= 9999.
func (s *AdminService) GenerateDoctorID(ctx context.Context) (string, error) {
	existing, err := s.doctors.ListDisplayIDs(ctx)
	if err != nil {
		return "", fmt.Errorf("list doctor ids: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, id := range existing {
		taken[id] = true
	}
	for i := 0; i < doctorIDMaxAttempts; i++ {
		id := fmt.Sprintf("%s%d", doctorIDPrefix, doctorIDMin+s.intN(doctorIDMax-doctorIDMin+1))
		if !taken[id] {
			return id, nil
		}
	}
	return "", newError(ErrConflict, "could not generate a unique doctor id")
}

type CreateDoctorRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	DoctorID string `json:"doctor_id"` // generated when empty
	Password string `json:"password"`  // optional; creates or updates the auth user
}

func (s *AdminService) CreateDoctor(ctx context.Context, req CreateDoctorRequest) (*domain.Doctor, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" {
		return nil, invalidf("name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalidf("a valid email is required")
	}
	if req.Password != "" && len(req.Password) < minPasswordLength {
		return nil, invalidf("password must be at least %d characters", minPasswordLength)
	}

	displayID := strings.ToUpper(strings.TrimSpace(req.DoctorID))
	if displayID == "" {
		id, err := s.GenerateDoctorID(ctx)
		if err != nil {
			return nil, err
		}
		displayID = id
	}

	doctor := &domain.Doctor{DoctorID: displayID, Name: name, Email: email}

	if req.Password != "" {
		userID, err := s.upsertPasswordUser(ctx, email, name, req.Password)
		if err != nil {
			return nil, err
		}
		doctor.UserID = &userID
	}

	if _, err := s.doctors.CreateDoctor(ctx, doctor); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(ErrConflict, "doctor id %s is already in use", displayID)
		}
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	s.logger.Info("Doctor created", zap.String("doctor_id", displayID))
	return doctor, nil
}

func (s *AdminService) upsertPasswordUser(ctx context.Context, email, fullName, password string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.UpdatePassword(ctx, user.UserID, hash); err != nil {
			return "", fmt.Errorf("update password: %w", err)
		}
		return user.UserID, nil
	case errors.Is(err, repository.ErrNotFound):
		user = &domain.User{Email: email, PasswordHash: hash, FullName: fullName}
		if _, err := s.users.CreateUser(ctx, user); err != nil {
			return "", fromRepo(err, "create user", "")
		}
		return user.UserID, nil
	default:
		return "", fmt.Errorf("get user: %w", err)
	}
}

// FixProfilesResult JSON keys follow the admin route's response.
type FixProfilesResult struct {
	TotalUsers    int      `json:"total_users"`
	TotalProfiles int      `json:"total_profiles"`
	FixedProfiles int      `json:"fixed_profiles"`
	Errors        []string `json:"errors"`
}

// FixPatientProfiles links profiles that have an email but no user_id to the
// auth user with that email. Per-profile failures are collected, not fatal.
func (s *AdminService) FixPatientProfiles(ctx context.Context) (*FixProfilesResult, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	all, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	unlinked, err := s.profiles.ListUnlinked(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unlinked profiles: %w", err)
	}

	byEmail := make(map[string]string, len(users))
	for _, u := range users {
		byEmail[normalizeEmail(u.Email)] = u.UserID
	}

	res := &FixProfilesResult{TotalUsers: len(users), TotalProfiles: len(all), Errors: []string{}}
	for _, p := range unlinked {
		userID, ok := byEmail[normalizeEmail(p.Email)]
		if !ok {
			continue
		}
		if err := s.profiles.LinkUser(ctx, p.ID, userID, true); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("profile %s: %v", p.ID, err))
			continue
		}
		res.FixedProfiles++
	}

	s.logger.Info("Patient profiles fixed",
		zap.Int("total_profiles", res.TotalProfiles),
		zap.Int("unlinked_profiles", len(unlinked)),
		zap.Int("fixed_profiles", res.FixedProfiles),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}
