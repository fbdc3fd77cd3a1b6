package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/service"
)

// Admin operator endpoints behind X-Admin-Token.
type Admin interface {
	ListUsers(ctx context.Context) ([]*domain.User, error)
	CreateUser(ctx context.Context, req service.CreateUserRequest) (*domain.User, error)
	ListDoctors(ctx context.Context) ([]*domain.Doctor, error)
	GenerateDoctorID(ctx context.Context) (string, error)
	CreateDoctor(ctx context.Context, req service.CreateDoctorRequest) (*domain.Doctor, error)
	FixPatientProfiles(ctx context.Context) (*service.FixProfilesResult, error)
}

type AdminHandler struct {
	admin  Admin
	logger *zap.Logger
}

func NewAdminHandler(admin Admin, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, map[string]any{"users": users})
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	u, err := h.admin.CreateUser(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(map[string]any{"user": u}))
}

func (h *AdminHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.admin.ListDoctors(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, doctors)
}

func (h *AdminHandler) GenerateDoctorID(w http.ResponseWriter, r *http.Request) {
	id, err := h.admin.GenerateDoctorID(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, map[string]string{"doctor_id": id})
}

func (h *AdminHandler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req service.CreateDoctorRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	d, err := h.admin.CreateDoctor(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(d))
}

func (h *AdminHandler) FixPatientProfiles(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.FixPatientProfiles(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, res)
}

func (r *Router) RegisterAdminRoutes(h *AdminHandler, auth *Auth) {
	r.Handle("GET /api/v1/admin/users", auth.Admin(h.ListUsers))
	r.Handle("POST /api/v1/admin/users", auth.Admin(h.CreateUser))
	r.Handle("GET /api/v1/admin/doctors", auth.Admin(h.ListDoctors))
	r.Handle("POST /api/v1/admin/doctors", auth.Admin(h.CreateDoctor))
	r.Handle("POST /api/v1/admin/doctors/generate-id", auth.Admin(h.GenerateDoctorID))
	r.Handle("GET /api/v1/admin/fix-patient-profiles", auth.Admin(h.FixPatientProfiles))
	r.Handle("POST /api/v1/admin/fix-patient-profiles", auth.Admin(h.FixPatientProfiles))
}
