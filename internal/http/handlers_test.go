package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/repository"
	"fluxia/internal/service"
)

const testAdminToken = "admin-secret"

type testServer struct {
	router      *Router
	auth        *fakeAuth
	diagnostics *fakeDiagnostics
	assignments *fakeAssignments
	chats       *fakeChats
	admin       *fakeAdmin
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	ts := &testServer{
		router: NewRouter(logger),
		auth: &fakeAuth{principals: map[string]*service.Principal{
			"doc-token": {
				User:   &domain.User{UserID: "doc-user", Email: "grey@clinic.test"},
				Doctor: &domain.Doctor{ID: "doc-1", DoctorID: "DOC1234", Name: "Dr. Grey"},
			},
			"pat-token": {
				User:    &domain.User{UserID: "pat-user", Email: "ada@example.test"},
				Patient: &domain.PatientProfile{ID: "p-1", FullName: "Ada Lovelace"},
			},
			"user-token": {User: &domain.User{UserID: "plain", Email: "x@example.test"}},
		}},
		diagnostics: &fakeDiagnostics{items: map[string]*domain.Diagnostic{
			"d-1": {ID: "d-1", DoctorID: "doc-user", Name: "Migraine", ChatID: "CHAT_AAAA1111"},
			"d-2": {ID: "d-2", DoctorID: "someone-else", Name: "Other"},
		}},
		assignments: &fakeAssignments{assigned: map[string]bool{}},
		chats:       &fakeChats{},
		admin:       &fakeAdmin{},
	}
	auth := NewAuth(ts.auth, testAdminToken, logger)
	ts.router.RegisterHealthRoutes(NewHealthHandler(logger))
	ts.router.RegisterAuthRoutes(NewAuthHandler(ts.auth, false, logger), auth)
	ts.router.RegisterDoctorRoutes(NewDoctorHandler(ts.diagnostics, ts.assignments, logger), auth)
	ts.router.RegisterPatientRoutes(NewPatientHandler(ts.chats, fakeNotifications{}, logger), auth)
	ts.router.RegisterAdminRoutes(NewAdminHandler(ts.admin, logger), auth)
	return ts
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Result[json.RawMessage] {
	t.Helper()
	var res Result[json.RawMessage]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/doctor/diagnostics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ResultTokenExpired, decode(t, rec).Code)

	rec = ts.do(http.MethodGet, "/api/v1/doctor/diagnostics", "stale", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ResultTokenExpired, decode(t, rec).Code)

	rec = ts.do(http.MethodGet, "/api/v1/doctor/diagnostics", "pat-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/patient/chats", "doc-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Session cookie works the same as the bearer header.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "pat-token"})
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var me meResponse
	require.NoError(t, json.Unmarshal(decode(t, rr).Result, &me))
	assert.Equal(t, "pat-user", me.UserID)
	assert.Equal(t, service.RolePatient, me.Role)
}

func TestDoctorLoginSetsCookie(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.login = &service.LoginResponse{Token: "tok", ExpiresIn: 3600, UserID: "doc-user", Role: service.RoleDoctor, Redirect: service.DoctorDashboardPath}

	rec := ts.do(http.MethodPost, "/api/v1/auth/doctor/login", "", service.DoctorLoginRequest{DoctorID: "DOC1234", Password: "x"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, ResultSuccess, res.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginErrors(t *testing.T) {
	ts := newTestServer(t)

	ts.auth.loginErr = &service.Error{Kind: service.ErrUnauthorized, Message: "invalid credentials"}
	rec := ts.do(http.MethodPost, "/api/v1/auth/doctor/login", "", service.DoctorLoginRequest{DoctorID: "DOC1234"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, ResultError, res.Code)
	assert.Equal(t, "invalid credentials", res.Message)

	ts.auth.loginErr = &service.Error{Kind: service.ErrNotFound, Message: "patient not found"}
	rec = ts.do(http.MethodPost, "/api/v1/auth/patient/login", "", service.PatientLoginRequest{FullName: "Nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.auth.loginErr = errors.New("connection reset")
	rec = ts.do(http.MethodPost, "/api/v1/auth/patient/direct-login", "", service.PatientDirectLoginRequest{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec).Message)

	rec = ts.do(http.MethodPost, "/api/v1/auth/doctor/login", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterPatientMultipart(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("chat_id", "CHAT_AAAA1111"))
	require.NoError(t, mw.WriteField("full_name", "Ada Lovelace"))
	require.NoError(t, mw.WriteField("email", "ada@example.test"))
	fw, err := mw.CreateFormFile("profile_image", "me.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n0000000000"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/patient/register", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CHAT_AAAA1111", ts.auth.register.ChatID)
	assert.Equal(t, "Ada Lovelace", ts.auth.register.FullName)
	require.NotNil(t, ts.auth.register.Image)
	assert.Equal(t, "me.png", ts.auth.register.Image.Filename)
	assert.Equal(t, "image/png", ts.auth.register.Image.ContentType)
}

func TestRegisterPatientJSON(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/v1/auth/patient/register", "", map[string]string{
		"chat_id": "CHAT_AAAA1111", "full_name": "Grace Hopper", "email": "grace@example.test",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var res service.RegisterPatientResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Result, &res))
	assert.Equal(t, service.CheckEmailPath, res.Redirect)
	assert.Nil(t, ts.auth.register.Image)
}

func TestVerifyLinkRedirects(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.login = &service.LoginResponse{Token: "tok", ExpiresIn: 60, Redirect: service.PatientDashboardPath}

	rec := ts.do(http.MethodGet, service.LinkVerifyPath+"?token=abc", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, service.PatientDashboardPath, rec.Header().Get("Location"))
	assert.Equal(t, "abc", ts.auth.consumed)
	require.Len(t, rec.Result().Cookies(), 1)

	ts.auth.loginErr = &service.Error{Kind: service.ErrUnauthorized, Message: "sign-in link is invalid or expired"}
	rec = ts.do(http.MethodGet, service.LinkVerifyPath+"?token=abc", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestLinkAndLogout(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/auth/link", "", linkRequest{Email: "ada@example.test"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ada@example.test"}, ts.auth.links)

	rec = ts.do(http.MethodPost, "/api/v1/auth/logout", "pat-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"pat-token"}, ts.auth.revoked)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestDoctorDiagnosticRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/doctor/diagnostics", "doc-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Diagnostic
	require.NoError(t, json.Unmarshal(decode(t, rec).Result, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "d-1", list[0].ID)

	rec = ts.do(http.MethodPost, "/api/v1/doctor/diagnostics", "doc-token", service.DiagnosticInput{Name: "Sleep"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "doc-user", ts.diagnostics.owner)

	rec = ts.do(http.MethodPost, "/api/v1/doctor/diagnostics", "doc-token", service.DiagnosticInput{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name is required", decode(t, rec).Message)

	rec = ts.do(http.MethodGet, "/api/v1/doctor/diagnostics/d-2", "doc-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPut, "/api/v1/doctor/diagnostics/d-1", "doc-token", service.DiagnosticInput{Name: "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", ts.diagnostics.items["d-1"].Name)

	rec = ts.do(http.MethodGet, "/api/v1/doctor/diagnostics/d-1/export", "doc-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "CHAT_AAAA1111-responses.xlsx")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))

	rec = ts.do(http.MethodDelete, "/api/v1/doctor/diagnostics/d-1", "doc-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, ts.diagnostics.items, "d-1")

	rec = ts.do(http.MethodPatch, "/api/v1/doctor/diagnostics/d-1", "doc-token", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDoctorAssignmentRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/doctor/diagnostics/d-1/patients?search=ada", "doc-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada", ts.assignments.search)

	rec = ts.do(http.MethodPost, "/api/v1/doctor/diagnostics/d-1/patients/p-1", "doc-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.assignments.assigned["p-1"])

	rec = ts.do(http.MethodPost, "/api/v1/doctor/diagnostics/d-1/patients/p-1", "doc-token", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/v1/doctor/diagnostics/d-1/patients/p-1", "doc-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ts.assignments.assigned["p-1"])
}

func TestPatientRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/patient/dashboard", "pat-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash dashboardResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Result, &dash))
	assert.Equal(t, "Ada Lovelace", dash.Profile.FullName)
	require.Len(t, dash.Chats, 1)
	assert.True(t, dash.Notifications.HasNotifications)

	rec = ts.do(http.MethodGet, "/api/v1/patient/chats/d-1", "pat-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	answers := map[string]string{"Pain:Level?": "7"}
	rec = ts.do(http.MethodPost, "/api/v1/patient/chats/d-1/responses", "pat-token", submitRequest{Answers: answers})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, answers, ts.chats.answers)

	ts.chats.err = &service.Error{Kind: service.ErrInvalidArgument, Message: "please answer all questions in Pain"}
	rec = ts.do(http.MethodPost, "/api/v1/patient/chats/d-1/responses", "pat-token", submitRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "please answer all questions in Pain", decode(t, rec).Message)
}

func TestNotificationCheckNeverFails(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/notifications/check", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/notifications/check", "stale", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/notifications/check", "pat-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res service.CheckResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Result, &res))
	assert.True(t, res.HasNotifications)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/admin/users", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminReq := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			_ = json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set(AdminTokenHeader, testAdminToken)
		rr := httptest.NewRecorder()
		ts.router.ServeHTTP(rr, req)
		return rr
	}

	rec = adminReq(http.MethodPost, "/api/v1/admin/users", service.CreateUserRequest{Email: "ops@fluxia.test", Password: "hunter22"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = adminReq(http.MethodGet, "/api/v1/admin/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ops@fluxia.test")

	rec = adminReq(http.MethodPost, "/api/v1/admin/doctors/generate-id", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "DOC4242")

	rec = adminReq(http.MethodPost, "/api/v1/admin/doctors", service.CreateDoctorRequest{Name: "Dr. New", Email: "new@clinic.test"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec = adminReq(method, "/api/v1/admin/fix-patient-profiles", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res service.FixProfilesResult
		require.NoError(t, json.Unmarshal(decode(t, rec).Result, &res))
		assert.Equal(t, 1, res.FixedProfiles)
	}
}

func TestAdminClosedWithoutToken(t *testing.T) {
	logger := zap.NewNop()
	r := NewRouter(logger)
	r.RegisterAdminRoutes(NewAdminHandler(&fakeAdmin{}, logger), NewAuth(&fakeAuth{}, "", logger))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.Header.Set(AdminTokenHeader, "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDoctorRoutes_MalformedIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	logger := zap.NewNop()
	repo := repository.New(db)
	diagnostics := service.NewDiagnosticService(repo.Diagnostics, repo.Profiles, repo.Responses, logger)
	assignments := service.NewAssignmentService(repo.Diagnostics, repo.Profiles, repo.PatientDiagnostics, logger)

	ts := newTestServer(t)
	ts.router = NewRouter(logger)
	ts.router.RegisterDoctorRoutes(NewDoctorHandler(diagnostics, assignments, logger), NewAuth(ts.auth, testAdminToken, logger))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/doctor/diagnostics/abc"},
		{http.MethodDelete, "/api/v1/doctor/diagnostics/abc"},
		{http.MethodGet, "/api/v1/doctor/diagnostics/abc/export"},
		{http.MethodGet, "/api/v1/doctor/diagnostics/abc/patients"},
		{http.MethodPost, "/api/v1/doctor/diagnostics/abc/patients/xyz"},
	} {
		rec := ts.do(tc.method, tc.path, "doc-token", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.method+" "+tc.path)
		assert.Equal(t, -1, decode(t, rec).Code)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}
