package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"fluxia/internal/domain"
	"fluxia/internal/mail"
	"fluxia/internal/repository"
	"fluxia/internal/store"
)

const (
	PatientDashboardPath = "/patient/dashboard"
	DoctorDashboardPath  = "/doctor/dashboard"
	CheckEmailPath       = "/login/patient/check-email"
	LinkVerifyPath       = "/api/v1/auth/link/verify"
)

// ImageStore uploads profile images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, name, contentType string, body []byte) (string, error)
}

// AuthService sign-in, registration and session resolution.
type AuthService interface {
	DoctorLogin(ctx context.Context, req DoctorLoginRequest) (*LoginResponse, error)
	RegisterPatient(ctx context.Context, req RegisterPatientRequest) (*RegisterPatientResponse, error)
	// RequestLink emails a one-time sign-in link.
	RequestLink(ctx context.Context, email, redirect string) error
	// ConsumeLink redeems a one-time link for a session.
	ConsumeLink(ctx context.Context, token string) (*LoginResponse, error)
	// PatientLogin signs in by full name, or falls back to a one-time link.
	PatientLogin(ctx context.Context, req PatientLoginRequest) (*LoginResponse, error)
	PatientDirectLogin(ctx context.Context, req PatientDirectLoginRequest) (*LoginResponse, error)
	Resolve(ctx context.Context, token string) (*Principal, error)
	SignOut(ctx context.Context, token string) error
}

type authService struct {
	users       repository.UsersRepository
	doctors     repository.DoctorsRepository
	profiles    repository.PatientProfilesRepository
	diagnostics repository.DiagnosticsRepository
	assignments *AssignmentService
	sessions    *store.SessionStore
	links       *store.LinkStore
	images      ImageStore
	mailer      mail.Mailer
	baseURL     string
	logger      *zap.Logger
}

// AuthDeps collects AuthService collaborators.
type AuthDeps struct {
	Users       repository.UsersRepository
	Doctors     repository.DoctorsRepository
	Profiles    repository.PatientProfilesRepository
	Diagnostics repository.DiagnosticsRepository
	Assignments *AssignmentService
	Sessions    *store.SessionStore
	Links       *store.LinkStore
	Images      ImageStore // optional
	Mailer      mail.Mailer
	BaseURL     string // public origin used in emailed links
}

func NewAuthService(deps AuthDeps, logger *zap.Logger) AuthService {
	return &authService{
		users:       deps.Users,
		doctors:     deps.Doctors,
		profiles:    deps.Profiles,
		diagnostics: deps.Diagnostics,
		assignments: deps.Assignments,
		sessions:    deps.Sessions,
		links:       deps.Links,
		images:      deps.Images,
		mailer:      deps.Mailer,
		baseURL:     strings.TrimRight(deps.BaseURL, "/"),
		logger:      logger,
	}
}

type DoctorLoginRequest struct {
	DoctorID string `json:"doctor_id"`
	Password string `json:"password"`
}

// LoginResponse Token is empty when a one-time link was sent instead.
type LoginResponse struct {
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"` // seconds
	UserID    string `json:"user_id,omitempty"`
	Role      string `json:"role,omitempty"`
	Redirect  string `json:"redirect"`
	LinkSent  bool   `json:"link_sent,omitempty"`
}

// UploadedImage is an optional multipart profile image.
type UploadedImage struct {
	Filename    string
	ContentType string
	Data        []byte
}

type RegisterPatientRequest struct {
	ChatID       string         `json:"chat_id"`
	FullName     string         `json:"full_name"`
	DateOfBirth  string         `json:"date_of_birth"`
	Phone        string         `json:"phone"`
	Email        string         `json:"email"`
	Occupation   string         `json:"occupation"`
	Presentation string         `json:"presentation"`
	Purpose      string         `json:"purpose"`
	Image        *UploadedImage `json:"-"`
}

type RegisterPatientResponse struct {
	PatientID string `json:"patient_id"`
	Redirect  string `json:"redirect"`
}

type PatientLoginRequest struct {
	FullName string `json:"fullName"`
}

type PatientDirectLoginRequest struct {
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	PatientID string `json:"patientId"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *authService) session(ctx context.Context, userID, role, redirect string) (*LoginResponse, error) {
	token, err := s.sessions.Create(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &LoginResponse{
		Token:     token,
		ExpiresIn: int(s.sessions.TTL().Seconds()),
		UserID:    userID,
		Role:      role,
		Redirect:  redirect,
	}, nil
}

// DoctorLogin looks the doctor up by display id, then checks the password
// of the auth user sharing the doctor's email.
func (s *authService) DoctorLogin(ctx context.Context, req DoctorLoginRequest) (*LoginResponse, error) {
	displayID := strings.TrimSpace(req.DoctorID)
	if displayID == "" || req.Password == "" {
		return nil, invalidf("doctor id and password are required")
	}

	doctor, err := s.doctors.GetByDisplayID(ctx, displayID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Doctor login failed", zap.String("doctor_id", displayID), zap.String("reason", "unknown_doctor_id"))
			return nil, newError(ErrNotFound, "doctor id not found")
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}

	user, err := s.users.GetByEmail(ctx, doctor.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !user.HasPassword() || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)) != nil {
		s.logger.Warn("Doctor login failed", zap.String("doctor_id", displayID), zap.String("reason", "invalid_credentials"))
		return nil, newError(ErrUnauthorized, "invalid credentials")
	}

	if !doctor.LinkedTo(user.UserID) {
		if err := s.doctors.LinkUser(ctx, doctor.ID, user.UserID); err != nil {
			s.logger.Error("Failed to link doctor to user",
				zap.String("doctor_id", displayID),
				zap.String("user_id", user.UserID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Doctor logged in", zap.String("doctor_id", displayID), zap.String("user_id", user.UserID))
	return s.session(ctx, user.UserID, RoleDoctor, DoctorDashboardPath)
}

// ensureUser returns the auth user for email, creating a password-less one when missing.
func (s *authService) ensureUser(ctx context.Context, email, fullName string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user = &domain.User{Email: email, FullName: fullName}
	if _, err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Created concurrently.
			return s.users.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *authService) RegisterPatient(ctx context.Context, req RegisterPatientRequest) (*RegisterPatientResponse, error) {
	req.ChatID = strings.TrimSpace(req.ChatID)
	req.FullName = strings.TrimSpace(req.FullName)
	email := normalizeEmail(req.Email)
	switch {
	case req.ChatID == "":
		return nil, invalidf("chat id is required")
	case req.FullName == "":
		return nil, invalidf("full name is required")
	case email == "" || !strings.Contains(email, "@"):
		return nil, invalidf("a valid email is required")
	}

	diag, err := s.diagnostics.GetByChatID(ctx, req.ChatID)
	if err != nil {
		return nil, fromRepo(err, "get diagnostic", "invalid chat id")
	}

	if _, err := s.profiles.GetByFullName(ctx, req.FullName); err == nil {
		return nil, newError(ErrConflict, "a patient with this full name already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check full name: %w", err)
	}

	user, err := s.ensureUser(ctx, email, req.FullName)
	if err != nil {
		return nil, err
	}

	if err := s.RequestLink(ctx, email, PatientDashboardPath); err != nil {
		return nil, err
	}

	var imageURL *string
	if req.Image != nil && len(req.Image.Data) > 0 && s.images != nil {
		name := email + path.Ext(req.Image.Filename)
		if u, err := s.images.Upload(ctx, name, req.Image.ContentType, req.Image.Data); err != nil {
			s.logger.Warn("Profile image upload failed", zap.String("email", email), zap.Error(err))
		} else {
			imageURL = &u
		}
	}

	profile := &domain.PatientProfile{
		FullName:        req.FullName,
		DateOfBirth:     strings.TrimSpace(req.DateOfBirth),
		Phone:           strings.TrimSpace(req.Phone),
		Email:           email,
		Occupation:      strings.TrimSpace(req.Occupation),
		Presentation:    strings.TrimSpace(req.Presentation),
		Purpose:         strings.TrimSpace(req.Purpose),
		ProfileImageURL: imageURL,
		UserID:          &user.UserID,
	}
	if _, err := s.profiles.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(ErrConflict, "a patient with this full name already exists")
		}
		return nil, fmt.Errorf("create patient profile: %w", err)
	}

	if err := s.assignments.Ensure(ctx, profile.ID, diag.ID); err != nil {
		s.logger.Error("Failed to associate patient with diagnostic",
			zap.String("patient_id", profile.ID),
			zap.String("diagnostic_id", diag.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("Patient registered",
		zap.String("patient_id", profile.ID),
		zap.String("diagnostic_id", diag.ID),
	)
	return &RegisterPatientResponse{PatientID: profile.ID, Redirect: CheckEmailPath}, nil
}

func (s *authService) RequestLink(ctx context.Context, email, redirect string) error {
	email = normalizeEmail(email)
	if email == "" {
		return invalidf("email is required")
	}
	if !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") {
		redirect = PatientDashboardPath
	}
	token, err := s.links.Issue(ctx, email, redirect)
	if err != nil {
		return fmt.Errorf("issue link: %w", err)
	}
	link := s.baseURL + LinkVerifyPath + "?token=" + url.QueryEscape(token)
	if err := s.mailer.Send(ctx, mail.SignInLink(email, link)); err != nil {
		return fmt.Errorf("send link: %w", err)
	}
	return nil
}

func (s *authService) ConsumeLink(ctx context.Context, token string) (*LoginResponse, error) {
	l, err := s.links.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, newError(ErrUnauthorized, "sign-in link is invalid or expired")
		}
		return nil, fmt.Errorf("consume link: %w", err)
	}

	user, err := s.ensureUser(ctx, l.Email, "")
	if err != nil {
		return nil, err
	}

	role := RoleUser
	if p, err := s.profiles.GetByEmail(ctx, l.Email); err == nil {
		role = RolePatient
		if !p.IsLinked() {
			if err := s.profiles.LinkUser(ctx, p.ID, user.UserID, true); err != nil {
				s.logger.Warn("Failed to link patient profile", zap.String("patient_id", p.ID), zap.Error(err))
			}
		}
	}
	return s.session(ctx, user.UserID, role, l.Redirect)
}

func (s *authService) PatientLogin(ctx context.Context, req PatientLoginRequest) (*LoginResponse, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, invalidf("full name is required")
	}
	profile, err := s.profiles.GetByFullName(ctx, fullName)
	if err != nil {
		return nil, fromRepo(err, "get patient profile", "patient not found")
	}

	// A linked profile signs in by full name alone; only unlinked profiles
	// go through the emailed link.
	if profile.IsLinked() {
		if user, err := s.users.GetUser(ctx, *profile.UserID); err == nil {
			return s.session(ctx, user.UserID, RolePatient, PatientDashboardPath)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("get user: %w", err)
		}
	}

	if profile.Email == "" {
		return nil, invalidf("patient has no email on file")
	}
	if err := s.RequestLink(ctx, profile.Email, PatientDashboardPath); err != nil {
		return nil, err
	}
	return &LoginResponse{Redirect: CheckEmailPath, LinkSent: true, Role: RolePatient}, nil
}

// PatientDirectLogin signs in without email round-trip when name, email and
// profile id all agree with the stored profile.
func (s *authService) PatientDirectLogin(ctx context.Context, req PatientDirectLoginRequest) (*LoginResponse, error) {
	fullName := strings.TrimSpace(req.FullName)
	email := normalizeEmail(req.Email)
	patientID := strings.TrimSpace(req.PatientID)
	if fullName == "" || email == "" || patientID == "" {
		return nil, invalidf("fullName, email and patientId are required")
	}
	if err := checkID(patientID, "patient not found"); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, patientID)
	if err != nil {
		return nil, fromRepo(err, "get patient profile", "patient not found")
	}
	if profile.FullName != fullName || normalizeEmail(profile.Email) != email {
		return nil, newError(ErrUnauthorized, "patient details do not match")
	}

	user, err := s.ensureUser(ctx, email, fullName)
	if err != nil {
		return nil, err
	}
	if !profile.IsLinked() {
		if err := s.profiles.LinkUser(ctx, profile.ID, user.UserID, true); err != nil {
			s.logger.Warn("Failed to link patient profile", zap.String("patient_id", profile.ID), zap.Error(err))
		}
	}
	return s.session(ctx, user.UserID, RolePatient, PatientDashboardPath)
}

// Resolve maps a session token to its principal. The patient profile is
// looked up by user id first, then by email (relinking it on a match).
func (s *authService) Resolve(ctx context.Context, token string) (*Principal, error) {
	userID, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, newError(ErrUnauthorized, "not signed in")
		}
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrUnauthorized, "not signed in")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	p := &Principal{Token: token, User: user}

	if d, err := s.doctors.GetByUserID(ctx, userID); err == nil {
		p.Doctor = d
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get doctor: %w", err)
	}

	profile, err := s.profiles.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		p.Patient = profile
	case errors.Is(err, repository.ErrNotFound):
		if profile, err = s.profiles.GetByEmail(ctx, user.Email); err == nil {
			if err := s.profiles.LinkUser(ctx, profile.ID, userID, false); err != nil {
				s.logger.Warn("Failed to relink patient profile", zap.String("patient_id", profile.ID), zap.Error(err))
			} else {
				profile.UserID = &userID
			}
			p.Patient = profile
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("get patient profile: %w", err)
		}
	default:
		return nil, fmt.Errorf("get patient profile: %w", err)
	}
	return p, nil
}

func (s *authService) SignOut(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// HashPassword bcrypt with the default cost.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
