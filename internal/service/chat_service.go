package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"fluxia/internal/domain"
	"fluxia/internal/repository"
	"fluxia/internal/schedule"
)

// UnknownDoctorName is shown when a diagnostic's author has no doctor row.
const UnknownDoctorName = "Unknown doctor"

// ChatService patient-side view of assigned diagnostics.
type ChatService struct {
	diagnostics   repository.DiagnosticsRepository
	doctors       repository.DoctorsRepository
	assignments   repository.PatientDiagnosticsRepository
	responses     repository.PatientResponsesRepository
	notifications repository.NotificationStatusRepository
	assign        *AssignmentService
	clock         *schedule.Clock
	intN          func(n int) int
	logger        *zap.Logger
}

// ChatDeps collects ChatService collaborators.
type ChatDeps struct {
	Diagnostics   repository.DiagnosticsRepository
	Doctors       repository.DoctorsRepository
	Assignments   repository.PatientDiagnosticsRepository
	Responses     repository.PatientResponsesRepository
	Notifications repository.NotificationStatusRepository
	Assign        *AssignmentService
	Clock         *schedule.Clock
}

func NewChatService(deps ChatDeps, logger *zap.Logger) *ChatService {
	return &ChatService{
		diagnostics:   deps.Diagnostics,
		doctors:       deps.Doctors,
		assignments:   deps.Assignments,
		responses:     deps.Responses,
		notifications: deps.Notifications,
		assign:        deps.Assign,
		clock:         deps.Clock,
		intN:          rand.IntN,
		logger:        logger,
	}
}

// ChatSummary one entry of the patient's chat list.
type ChatSummary struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	ChatID              string     `json:"chat_id"`
	CreatedAt           time.Time  `json:"created_at"`
	DoctorName          string     `json:"doctor_name"`
	HasPendingQuestions bool       `json:"has_pending_questions"`
	LastResponseDate    *time.Time `json:"last_response_date"`
}

// HistoryDay responses of one date, newest first.
type HistoryDay struct {
	Date      string                    `json:"date"`
	Responses []*domain.PatientResponse `json:"responses"`
}

// ChatView everything the chat screen needs for one diagnostic.
type ChatView struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	ChatID           string            `json:"chat_id"`
	DoctorName       string            `json:"doctor_name"`
	ScheduleDays     []domain.Weekday  `json:"schedule_days"`
	NotificationTime string            `json:"notification_time"`
	Date             string            `json:"date"`
	ScheduledToday   bool              `json:"scheduled_today"`
	AllAnswered      bool              `json:"all_answered"`
	TodayQuestions   []domain.Category `json:"today_questions"`
	FinalMessage     string            `json:"final_message,omitempty"`
	History          []HistoryDay      `json:"history"`
}

// SubmitResult returned after today's answers are stored.
type SubmitResult struct {
	Date         string `json:"date"`
	Saved        int    `json:"saved"`
	FinalMessage string `json:"final_message"`
}

func (s *ChatService) doctorName(ctx context.Context, doctorUserID string) string {
	d, err := s.doctors.GetByUserID(ctx, doctorUserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Failed to load doctor name", zap.String("doctor_id", doctorUserID), zap.Error(err))
		}
		return UnknownDoctorName
	}
	if strings.TrimSpace(d.Name) == "" {
		return UnknownDoctorName
	}
	return d.Name
}

func (s *ChatService) randomFinalMessage(d *domain.Diagnostic) string {
	if len(d.FinalMessages) == 0 {
		return ""
	}
	return d.FinalMessages[s.intN(len(d.FinalMessages))]
}

// ensureLegacyLinks associates the patient with diagnostics whose chat id
// embeds the patient id, a linkage older clients relied on.
func (s *ChatService) ensureLegacyLinks(ctx context.Context, patientID string) {
	legacy, err := s.diagnostics.ListByChatFragment(ctx, patientID)
	if err != nil {
		s.logger.Warn("Failed to look up legacy chat links", zap.String("patient_id", patientID), zap.Error(err))
		return
	}
	for _, d := range legacy {
		if err := s.assign.Ensure(ctx, patientID, d.ID); err != nil {
			s.logger.Warn("Failed to ensure legacy association",
				zap.String("patient_id", patientID),
				zap.String("diagnostic_id", d.ID),
				zap.Error(err),
			)
		}
	}
}

func (s *ChatService) ListChats(ctx context.Context, patient *domain.PatientProfile) ([]ChatSummary, error) {
	if patient == nil {
		return nil, newError(ErrForbidden, "patient profile required")
	}
	s.ensureLegacyLinks(ctx, patient.ID)

	list, err := s.assignments.ListForPatient(ctx, patient.ID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	day, date := s.clock.Today()
	out := make([]ChatSummary, 0, len(list))
	for _, pd := range list {
		d := pd.Diagnostic
		if d == nil {
			continue
		}
		today, err := s.responses.ListForDate(ctx, patient.ID, d.ID, date)
		if err != nil {
			return nil, fmt.Errorf("list today's responses: %w", err)
		}
		last, err := s.responses.LastResponseAt(ctx, patient.ID, d.ID)
		if err != nil {
			return nil, fmt.Errorf("last response: %w", err)
		}
		out = append(out, ChatSummary{
			ID:                  d.ID,
			Name:                d.Name,
			ChatID:              d.ChatID,
			CreatedAt:           d.CreatedAt,
			DoctorName:          s.doctorName(ctx, d.DoctorID),
			HasPendingQuestions: schedule.PendingFor(d, today, day),
			LastResponseDate:    last,
		})
	}
	return out, nil
}

// groupHistory buckets responses by date, dates descending, keeping the
// input order inside each bucket.
func groupHistory(responses []*domain.PatientResponse) []HistoryDay {
	idx := map[string]int{}
	var days []HistoryDay
	for _, r := range responses {
		i, ok := idx[r.ResponseDate]
		if !ok {
			i = len(days)
			idx[r.ResponseDate] = i
			days = append(days, HistoryDay{Date: r.ResponseDate})
		}
		days[i].Responses = append(days[i].Responses, r)
	}
	sort.SliceStable(days, func(a, b int) bool { return days[a].Date > days[b].Date })
	if days == nil {
		days = []HistoryDay{}
	}
	return days
}

// groupQuestions rebuilds categories from keys, preserving order.
func groupQuestions(keys []domain.QuestionKey) []domain.Category {
	out := []domain.Category{}
	for _, k := range keys {
		if n := len(out); n > 0 && out[n-1].Name == k.Category {
			out[n-1].Questions = append(out[n-1].Questions, k.Question)
			continue
		}
		out = append(out, domain.Category{Name: k.Category, Questions: []string{k.Question}})
	}
	return out
}

func (s *ChatService) GetChat(ctx context.Context, patient *domain.PatientProfile, diagnosticID string) (*ChatView, error) {
	if patient == nil {
		return nil, newError(ErrForbidden, "patient profile required")
	}
	if err := checkID(diagnosticID, "diagnostic not found"); err != nil {
		return nil, err
	}
	d, err := s.diagnostics.GetDiagnostic(ctx, diagnosticID)
	if err != nil {
		return nil, fromRepo(err, "get diagnostic", "diagnostic not found")
	}
	if err := s.assign.Ensure(ctx, patient.ID, d.ID); err != nil {
		s.logger.Warn("Failed to ensure association",
			zap.String("patient_id", patient.ID),
			zap.String("diagnostic_id", d.ID),
			zap.Error(err),
		)
	}

	all, err := s.responses.ListForPatientDiagnostic(ctx, patient.ID, d.ID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	day, date := s.clock.Today()
	var today []*domain.PatientResponse
	for _, r := range all {
		if r.ResponseDate == date {
			today = append(today, r)
		}
	}

	view := &ChatView{
		ID:               d.ID,
		Name:             d.Name,
		ChatID:           d.ChatID,
		DoctorName:       s.doctorName(ctx, d.DoctorID),
		ScheduleDays:     d.ScheduleDays,
		NotificationTime: d.NotificationTime,
		Date:             date,
		ScheduledToday:   d.ScheduledOn(day),
		AllAnswered:      schedule.AllAnswered(d, today),
		TodayQuestions:   []domain.Category{},
		History:          groupHistory(all),
	}
	if view.AllAnswered {
		view.FinalMessage = s.randomFinalMessage(d)
	} else if view.ScheduledToday {
		view.TodayQuestions = groupQuestions(schedule.Unanswered(d, today))
	}
	return view, nil
}

// Submit stores answers keyed "category:question" for every question still
// open today. Answers are trimmed; a blank answer rejects the whole submission.
func (s *ChatService) Submit(ctx context.Context, patient *domain.PatientProfile, diagnosticID string, answers map[string]string) (*SubmitResult, error) {
	if patient == nil {
		return nil, newError(ErrForbidden, "patient profile required")
	}
	if err := checkID(diagnosticID, "diagnostic not found"); err != nil {
		return nil, err
	}
	d, err := s.diagnostics.GetDiagnostic(ctx, diagnosticID)
	if err != nil {
		return nil, fromRepo(err, "get diagnostic", "diagnostic not found")
	}
	if err := s.assign.Ensure(ctx, patient.ID, d.ID); err != nil {
		return nil, err
	}

	day, date := s.clock.Today()
	if !d.ScheduledOn(day) {
		return nil, invalidf("no questions are scheduled for today")
	}
	today, err := s.responses.ListForDate(ctx, patient.ID, d.ID, date)
	if err != nil {
		return nil, fmt.Errorf("list today's responses: %w", err)
	}
	open := schedule.Unanswered(d, today)
	if len(open) == 0 {
		return nil, newError(ErrConflict, "today's questions are already answered")
	}

	rows := make([]*domain.PatientResponse, 0, len(open))
	for _, k := range open {
		v := strings.TrimSpace(answers[k.String()])
		if v == "" {
			return nil, invalidf("please answer all questions in %s", k.Category)
		}
		rows = append(rows, &domain.PatientResponse{
			PatientID:    patient.ID,
			DiagnosticID: d.ID,
			CategoryName: k.Category,
			QuestionText: k.Question,
			Response:     v,
			ResponseDate: date,
		})
	}
	if err := s.responses.InsertResponses(ctx, rows); err != nil {
		return nil, fmt.Errorf("save responses: %w", err)
	}

	if err := s.notifications.Upsert(ctx, &domain.NotificationStatus{
		PatientID:        patient.ID,
		DiagnosticID:     d.ID,
		NotificationDate: date,
		NotificationRead: true,
	}); err != nil {
		s.logger.Warn("Failed to mark notification read",
			zap.String("patient_id", patient.ID),
			zap.String("diagnostic_id", d.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("Responses submitted",
		zap.String("patient_id", patient.ID),
		zap.String("diagnostic_id", d.ID),
		zap.Int("count", len(rows)),
	)
	return &SubmitResult{Date: date, Saved: len(rows), FinalMessage: s.randomFinalMessage(d)}, nil
}
