package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/service"
)

// Diagnostics is the doctor-side diagnostic API.
type Diagnostics interface {
	Create(ctx context.Context, doctorUserID string, in service.DiagnosticInput) (*domain.Diagnostic, error)
	List(ctx context.Context, doctorUserID string) ([]*domain.Diagnostic, error)
	Get(ctx context.Context, doctorUserID, id string) (*domain.Diagnostic, error)
	Update(ctx context.Context, doctorUserID, id string, in service.DiagnosticInput) (*domain.Diagnostic, error)
	Delete(ctx context.Context, doctorUserID, id string) error
	ExportResponses(ctx context.Context, doctorUserID, id string) ([]byte, string, error)
}

// Assignments links patients to a doctor's diagnostic.
type Assignments interface {
	ListPatients(ctx context.Context, doctorUserID, diagnosticID, search string) ([]service.PatientAssignment, error)
	Assign(ctx context.Context, doctorUserID, diagnosticID, patientID string) error
	Unassign(ctx context.Context, doctorUserID, diagnosticID, patientID string) error
}

// DoctorHandler diagnostics and patient assignment for signed-in doctors.
type DoctorHandler struct {
	diagnostics Diagnostics
	assignments Assignments
	logger      *zap.Logger
}

func NewDoctorHandler(diagnostics Diagnostics, assignments Assignments, logger *zap.Logger) *DoctorHandler {
	return &DoctorHandler{diagnostics: diagnostics, assignments: assignments, logger: logger}
}

func doctorUserID(r *http.Request) string {
	return PrincipalFrom(r.Context()).UserID()
}

func (h *DoctorHandler) ListDiagnostics(w http.ResponseWriter, r *http.Request) {
	list, err := h.diagnostics.List(r.Context(), doctorUserID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, list)
}

func (h *DoctorHandler) CreateDiagnostic(w http.ResponseWriter, r *http.Request) {
	var in service.DiagnosticInput
	if err := readBodyJSON(r, maxJSONBody, &in); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	d, err := h.diagnostics.Create(r.Context(), doctorUserID(r), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(d))
}

func (h *DoctorHandler) GetDiagnostic(w http.ResponseWriter, r *http.Request) {
	d, err := h.diagnostics.Get(r.Context(), doctorUserID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, d)
}

func (h *DoctorHandler) UpdateDiagnostic(w http.ResponseWriter, r *http.Request) {
	var in service.DiagnosticInput
	if err := readBodyJSON(r, maxJSONBody, &in); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	d, err := h.diagnostics.Update(r.Context(), doctorUserID(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, d)
}

func (h *DoctorHandler) DeleteDiagnostic(w http.ResponseWriter, r *http.Request) {
	if err := h.diagnostics.Delete(r.Context(), doctorUserID(r), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, map[string]bool{"deleted": true})
}

func (h *DoctorHandler) ExportResponses(w http.ResponseWriter, r *http.Request) {
	b, name, err := h.diagnostics.ExportResponses(r.Context(), doctorUserID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *DoctorHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	rows, err := h.assignments.ListPatients(r.Context(), doctorUserID(r), r.PathValue("id"), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, rows)
}

func (h *DoctorHandler) AssignPatient(w http.ResponseWriter, r *http.Request) {
	if err := h.assignments.Assign(r.Context(), doctorUserID(r), r.PathValue("id"), r.PathValue("patientId")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, map[string]bool{"isAssigned": true})
}

func (h *DoctorHandler) UnassignPatient(w http.ResponseWriter, r *http.Request) {
	if err := h.assignments.Unassign(r.Context(), doctorUserID(r), r.PathValue("id"), r.PathValue("patientId")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, map[string]bool{"isAssigned": false})
}

func (r *Router) RegisterDoctorRoutes(h *DoctorHandler, auth *Auth) {
	r.Handle("GET /api/v1/doctor/diagnostics", auth.Doctor(h.ListDiagnostics))
	r.Handle("POST /api/v1/doctor/diagnostics", auth.Doctor(h.CreateDiagnostic))
	r.Handle("GET /api/v1/doctor/diagnostics/{id}", auth.Doctor(h.GetDiagnostic))
	r.Handle("PUT /api/v1/doctor/diagnostics/{id}", auth.Doctor(h.UpdateDiagnostic))
	r.Handle("DELETE /api/v1/doctor/diagnostics/{id}", auth.Doctor(h.DeleteDiagnostic))
	r.Handle("GET /api/v1/doctor/diagnostics/{id}/export", auth.Doctor(h.ExportResponses))
	r.Handle("GET /api/v1/doctor/diagnostics/{id}/patients", auth.Doctor(h.ListPatients))
	r.Handle("POST /api/v1/doctor/diagnostics/{id}/patients/{patientId}", auth.Doctor(h.AssignPatient))
	r.Handle("DELETE /api/v1/doctor/diagnostics/{id}/patients/{patientId}", auth.Doctor(h.UnassignPatient))
}
