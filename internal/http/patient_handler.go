package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/service"
)

// Chats is the patient-side questionnaire API.
type Chats interface {
	ListChats(ctx context.Context, patient *domain.PatientProfile) ([]service.ChatSummary, error)
	GetChat(ctx context.Context, patient *domain.PatientProfile, diagnosticID string) (*service.ChatView, error)
	Submit(ctx context.Context, patient *domain.PatientProfile, diagnosticID string, answers map[string]string) (*service.SubmitResult, error)
}

// Notifications answers the client's polling request.
type Notifications interface {
	Check(ctx context.Context, p *service.Principal) service.CheckResult
}

// PatientHandler profile, dashboard and chat endpoints for signed-in patients.
type PatientHandler struct {
	chats         Chats
	notifications Notifications
	logger        *zap.Logger
}

func NewPatientHandler(chats Chats, notifications Notifications, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{chats: chats, notifications: notifications, logger: logger}
}

func patient(r *http.Request) *domain.PatientProfile {
	return PrincipalFrom(r.Context()).Patient
}

func (h *PatientHandler) Profile(w http.ResponseWriter, r *http.Request) {
	writeOK(w, patient(r))
}

type dashboardResponse struct {
	Profile       *domain.PatientProfile `json:"profile"`
	Chats         []service.ChatSummary  `json:"chats"`
	Notifications service.CheckResult    `json:"notifications"`
}

func (h *PatientHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p := patient(r)
	chats, err := h.chats.ListChats(r.Context(), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, dashboardResponse{
		Profile:       p,
		Chats:         chats,
		Notifications: h.notifications.Check(r.Context(), PrincipalFrom(r.Context())),
	})
}

func (h *PatientHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.ListChats(r.Context(), patient(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, chats)
}

func (h *PatientHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	view, err := h.chats.GetChat(r.Context(), patient(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, view)
}

type submitRequest struct {
	Answers map[string]string `json:"answers"`
}

func (h *PatientHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	res, err := h.chats.Submit(r.Context(), patient(r), r.PathValue("id"), req.Answers)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, res)
}

// CheckNotifications never fails; signed-out callers get an empty result.
func (h *PatientHandler) CheckNotifications(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.notifications.Check(r.Context(), PrincipalFrom(r.Context())))
}

func (r *Router) RegisterPatientRoutes(h *PatientHandler, auth *Auth) {
	r.Handle("GET /api/v1/patient/profile", auth.Patient(h.Profile))
	r.Handle("GET /api/v1/patient/dashboard", auth.Patient(h.Dashboard))
	r.Handle("GET /api/v1/patient/chats", auth.Patient(h.ListChats))
	r.Handle("GET /api/v1/patient/chats/{id}", auth.Patient(h.GetChat))
	r.Handle("POST /api/v1/patient/chats/{id}/responses", auth.Patient(h.Submit))
	r.Handle("GET /api/v1/notifications/check", auth.Optional(h.CheckNotifications))
}
