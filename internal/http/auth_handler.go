package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"fluxia/internal/service"
)

const maxImageBytes = 5 << 20

// AuthHandler sign-in, registration and session endpoints.
type AuthHandler struct {
	auth         service.AuthService
	secureCookie bool
	logger       *zap.Logger
}

func NewAuthHandler(auth service.AuthService, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, secureCookie: secureCookie, logger: logger}
}

func (h *AuthHandler) setSession(w http.ResponseWriter, res *service.LoginResponse) {
	if res == nil || res.Token == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   res.ExpiresIn,
		Expires:  time.Now().Add(time.Duration(res.ExpiresIn) * time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, res *service.LoginResponse, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setSession(w, res)
	writeOK(w, res)
}

func (h *AuthHandler) DoctorLogin(w http.ResponseWriter, r *http.Request) {
	var req service.DoctorLoginRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	res, err := h.auth.DoctorLogin(r.Context(), req)
	h.login(w, r, res, err)
}

// RegisterPatient accepts JSON or multipart/form-data with an optional profile_image file.
func (h *AuthHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterPatientRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			writeBadRequest(w, "invalid form")
			return
		}
		req = service.RegisterPatientRequest{
			ChatID:       r.FormValue("chat_id"),
			FullName:     r.FormValue("full_name"),
			DateOfBirth:  r.FormValue("date_of_birth"),
			Phone:        r.FormValue("phone"),
			Email:        r.FormValue("email"),
			Occupation:   r.FormValue("occupation"),
			Presentation: r.FormValue("presentation"),
			Purpose:      r.FormValue("purpose"),
		}
		img, err := readImage(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		req.Image = img
	} else if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}

	res, err := h.auth.RegisterPatient(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, res)
}

func readImage(r *http.Request) (*service.UploadedImage, error) {
	f, hdr, err := r.FormFile("profile_image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New("invalid profile image")
	}
	defer f.Close()
	if hdr.Size > maxImageBytes {
		return nil, errors.New("profile image is too large")
	}
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		return nil, errors.New("invalid profile image")
	}
	ct := hdr.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, errors.New("profile image must be an image")
	}
	return &service.UploadedImage{Filename: hdr.Filename, ContentType: ct, Data: data}, nil
}

func (h *AuthHandler) PatientLogin(w http.ResponseWriter, r *http.Request) {
	var req service.PatientLoginRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	res, err := h.auth.PatientLogin(r.Context(), req)
	h.login(w, r, res, err)
}

func (h *AuthHandler) PatientDirectLogin(w http.ResponseWriter, r *http.Request) {
	var req service.PatientDirectLoginRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	res, err := h.auth.PatientDirectLogin(r.Context(), req)
	h.login(w, r, res, err)
}

type linkRequest struct {
	Email    string `json:"email"`
	Redirect string `json:"redirect"`
}

// RequestLink always answers with the check-email redirect once the email is accepted.
func (h *AuthHandler) RequestLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	if err := h.auth.RequestLink(r.Context(), req.Email, req.Redirect); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, service.LoginResponse{Redirect: service.CheckEmailPath, LinkSent: true})
}

// VerifyLink is the target of emailed links: it sets the session cookie and
// redirects to the page the link was issued for.
func (h *AuthHandler) VerifyLink(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.ConsumeLink(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setSession(w, res)
	http.Redirect(w, r, res.Redirect, http.StatusFound)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.auth.SignOut(r.Context(), token); err != nil {
			h.logger.Warn("Failed to revoke session", zap.Error(err))
		}
	}
	h.clearSession(w)
	writeOK(w, map[string]string{"redirect": "/"})
}

type meResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Doctor  any    `json:"doctor,omitempty"`
	Patient any    `json:"patient,omitempty"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	res := meResponse{UserID: p.UserID(), Email: p.User.Email, Role: p.Role()}
	if p.Doctor != nil {
		res.Doctor = p.Doctor
	}
	if p.Patient != nil {
		res.Patient = p.Patient
	}
	writeOK(w, res)
}

func (r *Router) RegisterAuthRoutes(h *AuthHandler, auth *Auth) {
	r.Handle("POST /api/v1/auth/doctor/login", h.DoctorLogin)
	r.Handle("POST /api/v1/auth/patient/register", h.RegisterPatient)
	r.Handle("POST /api/v1/auth/patient/login", h.PatientLogin)
	r.Handle("POST /api/v1/auth/patient/direct-login", h.PatientDirectLogin)
	r.Handle("POST /api/v1/auth/link", h.RequestLink)
	r.Handle("GET "+service.LinkVerifyPath, h.VerifyLink)
	r.Handle("POST /api/v1/auth/logout", h.Logout)
	r.Handle("GET /api/v1/auth/me", auth.Required(h.Me))
}
