package httpapi

import (
	"context"

	"fluxia/internal/domain"
	"fluxia/internal/service"
)

type fakeAuth struct {
	principals map[string]*service.Principal
	login      *service.LoginResponse
	loginErr   error
	register   service.RegisterPatientRequest
	consumed   string
	revoked    []string
	links      []string
}

func (f *fakeAuth) DoctorLogin(ctx context.Context, req service.DoctorLoginRequest) (*service.LoginResponse, error) {
	return f.login, f.loginErr
}

func (f *fakeAuth) RegisterPatient(ctx context.Context, req service.RegisterPatientRequest) (*service.RegisterPatientResponse, error) {
	f.register = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &service.RegisterPatientResponse{PatientID: "p-1", Redirect: service.CheckEmailPath}, nil
}

func (f *fakeAuth) RequestLink(ctx context.Context, email, redirect string) error {
	f.links = append(f.links, email)
	return f.loginErr
}

func (f *fakeAuth) ConsumeLink(ctx context.Context, token string) (*service.LoginResponse, error) {
	f.consumed = token
	return f.login, f.loginErr
}

func (f *fakeAuth) PatientLogin(ctx context.Context, req service.PatientLoginRequest) (*service.LoginResponse, error) {
	return f.login, f.loginErr
}

func (f *fakeAuth) PatientDirectLogin(ctx context.Context, req service.PatientDirectLoginRequest) (*service.LoginResponse, error) {
	return f.login, f.loginErr
}

func (f *fakeAuth) Resolve(ctx context.Context, token string) (*service.Principal, error) {
	if p, ok := f.principals[token]; ok {
		return p, nil
	}
	return nil, &service.Error{Kind: service.ErrUnauthorized, Message: "not signed in"}
}

func (f *fakeAuth) SignOut(ctx context.Context, token string) error {
	f.revoked = append(f.revoked, token)
	return nil
}

type fakeDiagnostics struct {
	items   map[string]*domain.Diagnostic
	created service.DiagnosticInput
	owner   string
}

func (f *fakeDiagnostics) get(doctorUserID, id string) (*domain.Diagnostic, error) {
	d, ok := f.items[id]
	if !ok || d.DoctorID != doctorUserID {
		return nil, &service.Error{Kind: service.ErrNotFound, Message: "diagnostic not found"}
	}
	return d, nil
}

func (f *fakeDiagnostics) Create(ctx context.Context, doctorUserID string, in service.DiagnosticInput) (*domain.Diagnostic, error) {
	if in.Name == "" {
		return nil, &service.Error{Kind: service.ErrInvalidArgument, Message: "name is required"}
	}
	f.created = in
	f.owner = doctorUserID
	return &domain.Diagnostic{ID: "d-new", DoctorID: doctorUserID, Name: in.Name, ChatID: "CHAT_ABCD1234"}, nil
}

func (f *fakeDiagnostics) List(ctx context.Context, doctorUserID string) ([]*domain.Diagnostic, error) {
	out := []*domain.Diagnostic{}
	for _, d := range f.items {
		if d.DoctorID == doctorUserID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDiagnostics) Get(ctx context.Context, doctorUserID, id string) (*domain.Diagnostic, error) {
	return f.get(doctorUserID, id)
}

func (f *fakeDiagnostics) Update(ctx context.Context, doctorUserID, id string, in service.DiagnosticInput) (*domain.Diagnostic, error) {
	d, err := f.get(doctorUserID, id)
	if err != nil {
		return nil, err
	}
	d.Name = in.Name
	return d, nil
}

func (f *fakeDiagnostics) Delete(ctx context.Context, doctorUserID, id string) error {
	if _, err := f.get(doctorUserID, id); err != nil {
		return err
	}
	delete(f.items, id)
	return nil
}

func (f *fakeDiagnostics) ExportResponses(ctx context.Context, doctorUserID, id string) ([]byte, string, error) {
	d, err := f.get(doctorUserID, id)
	if err != nil {
		return nil, "", err
	}
	return []byte("PK\x03\x04"), d.ChatID + "-responses.xlsx", nil
}

type fakeAssignments struct {
	assigned map[string]bool
	search   string
}

func (f *fakeAssignments) ListPatients(ctx context.Context, doctorUserID, diagnosticID, search string) ([]service.PatientAssignment, error) {
	f.search = search
	return []service.PatientAssignment{{ID: "p-1", FullName: "Ada Lovelace", Email: "ada@example.test", IsAssigned: f.assigned["p-1"]}}, nil
}

func (f *fakeAssignments) Assign(ctx context.Context, doctorUserID, diagnosticID, patientID string) error {
	if f.assigned[patientID] {
		return &service.Error{Kind: service.ErrConflict, Message: "patient is already assigned"}
	}
	f.assigned[patientID] = true
	return nil
}

func (f *fakeAssignments) Unassign(ctx context.Context, doctorUserID, diagnosticID, patientID string) error {
	delete(f.assigned, patientID)
	return nil
}

type fakeChats struct {
	answers map[string]string
	err     error
}

func (f *fakeChats) ListChats(ctx context.Context, patient *domain.PatientProfile) ([]service.ChatSummary, error) {
	return []service.ChatSummary{{ID: "d-1", Name: "Migraine", DoctorName: "Dr. Grey", HasPendingQuestions: true}}, f.err
}

func (f *fakeChats) GetChat(ctx context.Context, patient *domain.PatientProfile, diagnosticID string) (*service.ChatView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.ChatView{ID: diagnosticID, Name: "Migraine", Date: "2026-10-19"}, nil
}

func (f *fakeChats) Submit(ctx context.Context, patient *domain.PatientProfile, diagnosticID string, answers map[string]string) (*service.SubmitResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.answers = answers
	return &service.SubmitResult{Date: "2026-10-19", Saved: len(answers), FinalMessage: "Thanks"}, nil
}

type fakeNotifications struct{}

func (fakeNotifications) Check(ctx context.Context, p *service.Principal) service.CheckResult {
	if p == nil || p.Patient == nil {
		return service.CheckResult{PendingDiagnostics: nil}
	}
	return service.CheckResult{HasNotifications: true}
}

type fakeAdmin struct {
	users   []*domain.User
	doctors []*domain.Doctor
}

func (f *fakeAdmin) ListUsers(ctx context.Context) ([]*domain.User, error) { return f.users, nil }

func (f *fakeAdmin) CreateUser(ctx context.Context, req service.CreateUserRequest) (*domain.User, error) {
	u := &domain.User{UserID: "u-new", Email: req.Email}
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeAdmin) ListDoctors(ctx context.Context) ([]*domain.Doctor, error) { return f.doctors, nil }

func (f *fakeAdmin) GenerateDoctorID(ctx context.Context) (string, error) { return "DOC4242", nil }

func (f *fakeAdmin) CreateDoctor(ctx context.Context, req service.CreateDoctorRequest) (*domain.Doctor, error) {
	d := &domain.Doctor{ID: "doc-new", DoctorID: "DOC4242", Name: req.Name, Email: req.Email}
	f.doctors = append(f.doctors, d)
	return d, nil
}

func (f *fakeAdmin) FixPatientProfiles(ctx context.Context) (*service.FixProfilesResult, error) {
	return &service.FixProfilesResult{TotalUsers: 2, TotalProfiles: 3, FixedProfiles: 1, Errors: []string{}}, nil
}
