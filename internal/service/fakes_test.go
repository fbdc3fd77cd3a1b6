package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/mail"
	"fluxia/internal/notify"
	"fluxia/internal/repository"
	"fluxia/internal/schedule"
	"fluxia/internal/store"
)

// memDB is an in-memory stand-in for every repository interface.
type memDB struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	doctors     map[string]*domain.Doctor
	profiles    map[string]*domain.PatientProfile
	diagnostics map[string]*domain.Diagnostic
	assignments []*domain.PatientDiagnostic
	responses   []*domain.PatientResponse
	statuses    map[string]*domain.NotificationStatus
	seq         time.Time
}

func newMemDB() *memDB {
	return &memDB{
		users:       map[string]*domain.User{},
		doctors:     map[string]*domain.Doctor{},
		profiles:    map[string]*domain.PatientProfile{},
		diagnostics: map[string]*domain.Diagnostic{},
		statuses:    map[string]*domain.NotificationStatus{},
		seq:         time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memDB) tick() time.Time {
	m.seq = m.seq.Add(time.Second)
	return m.seq
}

func notFound(what string) error { return &wrapped{what, repository.ErrNotFound} }
func conflict(what string) error { return &wrapped{what, repository.ErrConflict} }

type wrapped struct {
	what string
	err  error
}

func (w *wrapped) Error() string { return w.what + " " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }

// ---- users ----

type memUsers struct{ *memDB }

func (m memUsers) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		c := *u
		return &c, nil
	}
	return nil, notFound("user")
}

func (m memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			c := *u
			return &c, nil
		}
	}
	return nil, notFound("user")
}

func (m memUsers) ListUsers(ctx context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.User{}
	for _, u := range m.users {
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

func (m memUsers) CreateUser(ctx context.Context, u *domain.User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return "", conflict("user")
		}
	}
	u.UserID = uuid.NewString()
	u.CreatedAt = m.tick()
	c := *u
	m.users[u.UserID] = &c
	return u.UserID, nil
}

func (m memUsers) UpdatePassword(ctx context.Context, userID string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return notFound("user")
	}
	u.PasswordHash = hash
	return nil
}

// ---- doctors ----

type memDoctors struct{ *memDB }

func (m memDoctors) find(pred func(*domain.Doctor) bool) (*domain.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.doctors {
		if pred(d) {
			c := *d
			return &c, nil
		}
	}
	return nil, notFound("doctor")
}

func (m memDoctors) ListDoctors(ctx context.Context) ([]*domain.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Doctor{}
	for _, d := range m.doctors {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memDoctors) GetDoctor(ctx context.Context, id string) (*domain.Doctor, error) {
	return m.find(func(d *domain.Doctor) bool { return d.ID == id })
}

func (m memDoctors) GetByDisplayID(ctx context.Context, displayID string) (*domain.Doctor, error) {
	return m.find(func(d *domain.Doctor) bool { return d.DoctorID == displayID })
}

func (m memDoctors) GetByUserID(ctx context.Context, userID string) (*domain.Doctor, error) {
	return m.find(func(d *domain.Doctor) bool { return d.UserID != nil && *d.UserID == userID })
}

func (m memDoctors) ListDisplayIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, d := range m.doctors {
		ids = append(ids, d.DoctorID)
	}
	return ids, nil
}

func (m memDoctors) CreateDoctor(ctx context.Context, d *domain.Doctor) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.doctors {
		if existing.DoctorID == d.DoctorID {
			return "", conflict("doctor")
		}
	}
	d.ID = uuid.NewString()
	d.CreatedAt = m.tick()
	c := *d
	m.doctors[d.ID] = &c
	return d.ID, nil
}

func (m memDoctors) LinkUser(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return notFound("doctor")
	}
	d.UserID = &userID
	return nil
}

// ---- patient profiles ----

type memProfiles struct{ *memDB }

func (m memProfiles) find(pred func(*domain.PatientProfile) bool) (*domain.PatientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if pred(p) {
			c := *p
			return &c, nil
		}
	}
	return nil, notFound("patient profile")
}

func (m memProfiles) GetProfile(ctx context.Context, id string) (*domain.PatientProfile, error) {
	return m.find(func(p *domain.PatientProfile) bool { return p.ID == id })
}

func (m memProfiles) GetByUserID(ctx context.Context, userID string) (*domain.PatientProfile, error) {
	return m.find(func(p *domain.PatientProfile) bool { return p.UserID != nil && *p.UserID == userID })
}

func (m memProfiles) GetByEmail(ctx context.Context, email string) (*domain.PatientProfile, error) {
	return m.find(func(p *domain.PatientProfile) bool { return p.Email != "" && strings.EqualFold(p.Email, email) })
}

func (m memProfiles) GetByFullName(ctx context.Context, fullName string) (*domain.PatientProfile, error) {
	return m.find(func(p *domain.PatientProfile) bool { return p.FullName == strings.TrimSpace(fullName) })
}

func (m memProfiles) ListProfiles(ctx context.Context) ([]*domain.PatientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.PatientProfile{}
	for _, p := range m.profiles {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m memProfiles) ListUnlinked(ctx context.Context) ([]*domain.PatientProfile, error) {
	all, _ := m.ListProfiles(ctx)
	out := []*domain.PatientProfile{}
	for _, p := range all {
		if !p.IsLinked() && p.Email != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memProfiles) CreateProfile(ctx context.Context, p *domain.PatientProfile) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.profiles {
		if existing.FullName == p.FullName {
			return "", conflict("patient profile")
		}
	}
	p.ID = uuid.NewString()
	p.CreatedAt = m.tick()
	c := *p
	m.profiles[p.ID] = &c
	return p.ID, nil
}

func (m memProfiles) LinkUser(ctx context.Context, id, userID string, onlyIfUnlinked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok || (onlyIfUnlinked && p.IsLinked()) {
		return notFound("patient profile")
	}
	p.UserID = &userID
	return nil
}

// ---- diagnostics ----

type memDiagnostics struct{ *memDB }

func (m memDiagnostics) CreateDiagnostic(ctx context.Context, d *domain.Diagnostic) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.diagnostics {
		if existing.ChatID == d.ChatID {
			return "", conflict("diagnostic")
		}
	}
	d.ID = uuid.NewString()
	d.CreatedAt = m.tick()
	d.UpdatedAt = d.CreatedAt
	c := *d
	m.diagnostics[d.ID] = &c
	return d.ID, nil
}

func (m memDiagnostics) GetDiagnostic(ctx context.Context, id string) (*domain.Diagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.diagnostics[id]; ok {
		c := *d
		return &c, nil
	}
	return nil, notFound("diagnostic")
}

func (m memDiagnostics) GetByChatID(ctx context.Context, chatID string) (*domain.Diagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.diagnostics {
		if d.ChatID == chatID {
			c := *d
			return &c, nil
		}
	}
	return nil, notFound("diagnostic")
}

func (m memDiagnostics) ListByDoctor(ctx context.Context, doctorUserID string) ([]*domain.Diagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Diagnostic{}
	for _, d := range m.diagnostics {
		if d.DoctorID == doctorUserID {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memDiagnostics) ListByChatFragment(ctx context.Context, fragment string) ([]*domain.Diagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Diagnostic{}
	for _, d := range m.diagnostics {
		if fragment != "" && strings.Contains(strings.ToLower(d.ChatID), strings.ToLower(fragment)) {
			c := *d
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m memDiagnostics) UpdateDiagnostic(ctx context.Context, d *domain.Diagnostic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.diagnostics[d.ID]
	if !ok || existing.DoctorID != d.DoctorID {
		return notFound("diagnostic")
	}
	d.UpdatedAt = m.tick()
	c := *d
	m.diagnostics[d.ID] = &c
	return nil
}

func (m memDiagnostics) DeleteDiagnostic(ctx context.Context, doctorUserID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.diagnostics[id]
	if !ok || existing.DoctorID != doctorUserID {
		return notFound("diagnostic")
	}
	delete(m.diagnostics, id)
	return nil
}

// ---- patient diagnostics ----

type memAssignments struct{ *memDB }

func (m memAssignments) ListForPatient(ctx context.Context, patientID string) ([]*domain.PatientDiagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.PatientDiagnostic{}
	for _, a := range m.assignments {
		if a.PatientID != patientID {
			continue
		}
		d, ok := m.diagnostics[a.DiagnosticID]
		if !ok {
			continue
		}
		c := *a
		dc := *d
		c.Diagnostic = &dc
		out = append(out, &c)
	}
	return out, nil
}

func (m memAssignments) ListForDiagnostic(ctx context.Context, diagnosticID string) ([]*domain.PatientDiagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.PatientDiagnostic{}
	for _, a := range m.assignments {
		if a.DiagnosticID == diagnosticID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m memAssignments) Get(ctx context.Context, patientID, diagnosticID string) (*domain.PatientDiagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.PatientID == patientID && a.DiagnosticID == diagnosticID {
			c := *a
			return &c, nil
		}
	}
	return nil, notFound("patient diagnostic")
}

func (m memAssignments) Create(ctx context.Context, pd *domain.PatientDiagnostic) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.PatientID == pd.PatientID && a.DiagnosticID == pd.DiagnosticID {
			return "", conflict("patient diagnostic")
		}
	}
	if pd.Status == "" {
		pd.Status = domain.PatientDiagnosticStatusActive
	}
	pd.ID = uuid.NewString()
	pd.CreatedAt = m.tick()
	c := *pd
	m.assignments = append(m.assignments, &c)
	return pd.ID, nil
}

func (m memAssignments) Delete(ctx context.Context, patientID, diagnosticID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.assignments {
		if a.PatientID == patientID && a.DiagnosticID == diagnosticID {
			m.assignments = append(m.assignments[:i], m.assignments[i+1:]...)
			return nil
		}
	}
	return notFound("patient diagnostic")
}

func (m memAssignments) ListActivePatientIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, a := range m.assignments {
		if a.Status == domain.PatientDiagnosticStatusActive && !seen[a.PatientID] {
			seen[a.PatientID] = true
			ids = append(ids, a.PatientID)
		}
	}
	return ids, nil
}

// ---- responses ----

type memResponses struct{ *memDB }

func (m memResponses) InsertResponses(ctx context.Context, rs []*domain.PatientResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rs {
		r.ID = uuid.NewString()
		r.CreatedAt = m.tick()
		c := *r
		m.responses = append(m.responses, &c)
	}
	return nil
}

func (m memResponses) filter(pred func(*domain.PatientResponse) bool, newestFirst bool) []*domain.PatientResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.PatientResponse{}
	for _, r := range m.responses {
		if pred(r) {
			c := *r
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m memResponses) ListForPatientDiagnostic(ctx context.Context, patientID, diagnosticID string) ([]*domain.PatientResponse, error) {
	return m.filter(func(r *domain.PatientResponse) bool {
		return r.PatientID == patientID && r.DiagnosticID == diagnosticID
	}, true), nil
}

func (m memResponses) ListForDate(ctx context.Context, patientID, diagnosticID, date string) ([]*domain.PatientResponse, error) {
	return m.filter(func(r *domain.PatientResponse) bool {
		return r.PatientID == patientID && r.DiagnosticID == diagnosticID && r.ResponseDate == date
	}, false), nil
}

func (m memResponses) ListForDiagnostic(ctx context.Context, diagnosticID string) ([]*domain.PatientResponse, error) {
	return m.filter(func(r *domain.PatientResponse) bool { return r.DiagnosticID == diagnosticID }, false), nil
}

func (m memResponses) LastResponseAt(ctx context.Context, patientID, diagnosticID string) (*time.Time, error) {
	list, _ := m.ListForPatientDiagnostic(ctx, patientID, diagnosticID)
	if len(list) == 0 {
		return nil, nil
	}
	t := list[0].CreatedAt
	return &t, nil
}

// ---- notification status ----

type memStatuses struct{ *memDB }

func statusKey(p, d, date string) string { return p + "|" + d + "|" + date }

func (m memStatuses) Upsert(ctx context.Context, s *domain.NotificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := statusKey(s.PatientID, s.DiagnosticID, s.NotificationDate)
	existing, ok := m.statuses[k]
	if !ok {
		c := *s
		m.statuses[k] = &c
		return nil
	}
	existing.NotificationRead = existing.NotificationRead || s.NotificationRead
	if s.NotifiedAt != nil {
		existing.NotifiedAt = s.NotifiedAt
	}
	return nil
}

func (m memStatuses) Get(ctx context.Context, patientID, diagnosticID, date string) (*domain.NotificationStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.statuses[statusKey(patientID, diagnosticID, date)]; ok {
		c := *s
		return &c, nil
	}
	return nil, notFound("notification status")
}

// ---- collaborators ----

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) last() mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return mail.Message{}
	}
	return f.sent[len(f.sent)-1]
}

type fakeImages struct {
	names []string
	err   error
}

func (f *fakeImages) Upload(ctx context.Context, name, contentType string, body []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.names = append(f.names, name)
	return "https://cdn.test/profile-images/" + name, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, ev notify.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

// testEnv wires every service over memDB and miniredis.
type testEnv struct {
	db            *memDB
	mr            *miniredis.Miniredis
	kv            *store.RedisKV
	clock         *schedule.Clock
	mailer        *fakeMailer
	images        *fakeImages
	auth          AuthService
	admin         *AdminService
	diagnostics   *DiagnosticService
	assignments   *AssignmentService
	chats         *ChatService
	notifications *NotificationService
}

// monday0930 is Monday 2026-10-19 09:30 UTC.
var monday0930 = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	db := newMemDB()
	kv := store.NewRedisKV(rc)
	clock := schedule.FixedClock(now, time.UTC)
	logger := zap.NewNop()

	env := &testEnv{
		db:     db,
		mr:     mr,
		kv:     kv,
		clock:  clock,
		mailer: &fakeMailer{},
		images: &fakeImages{},
	}
	env.assignments = NewAssignmentService(memDiagnostics{db}, memProfiles{db}, memAssignments{db}, logger)
	env.auth = NewAuthService(AuthDeps{
		Users:       memUsers{db},
		Doctors:     memDoctors{db},
		Profiles:    memProfiles{db},
		Diagnostics: memDiagnostics{db},
		Assignments: env.assignments,
		Sessions:    store.NewSessionStore(kv, time.Hour),
		Links:       store.NewLinkStore(kv, 15*time.Minute),
		Images:      env.images,
		Mailer:      env.mailer,
		BaseURL:     "https://fluxia.test/",
	}, logger)
	env.admin = NewAdminService(memUsers{db}, memDoctors{db}, memProfiles{db}, logger)
	env.diagnostics = NewDiagnosticService(memDiagnostics{db}, memProfiles{db}, memResponses{db}, logger)
	env.chats = NewChatService(ChatDeps{
		Diagnostics:   memDiagnostics{db},
		Doctors:       memDoctors{db},
		Assignments:   memAssignments{db},
		Responses:     memResponses{db},
		Notifications: memStatuses{db},
		Assign:        env.assignments,
		Clock:         clock,
	}, logger)
	env.notifications = NewNotificationService(memAssignments{db}, memResponses{db}, clock, logger)
	return env
}

// seedDoctor creates a doctor and, when password is set, its auth user.
// It returns the user id, or "" without a password.
func (e *testEnv) seedDoctor(t *testing.T, displayID, name, email, password string) string {
	t.Helper()
	d, err := e.admin.CreateDoctor(context.Background(), CreateDoctorRequest{
		Name: name, Email: email, DoctorID: displayID, Password: password,
	})
	if err != nil {
		t.Fatalf("seed doctor: %v", err)
	}
	if d.UserID == nil {
		return ""
	}
	return *d.UserID
}

func (e *testEnv) seedDiagnostic(t *testing.T, doctorUserID string, days ...string) *domain.Diagnostic {
	t.Helper()
	d, err := e.diagnostics.Create(context.Background(), doctorUserID, DiagnosticInput{
		Name: "Migraine",
		Categories: []domain.Category{
			{Name: "Pain", Questions: []string{"Level?", "Where?"}},
			{Name: "Sleep", Questions: []string{"Hours?"}},
		},
		FinalMessages: []string{"Thank you!"},
		ScheduleDays:  days,
	})
	if err != nil {
		t.Fatalf("seed diagnostic: %v", err)
	}
	return d
}

func (e *testEnv) seedPatient(t *testing.T, fullName, email string) *domain.PatientProfile {
	t.Helper()
	p := &domain.PatientProfile{FullName: fullName, Email: email}
	if _, err := (memProfiles{e.db}).CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return p
}
