// Package schedule decides which diagnostics are due and still pending for a patient.
package schedule

import (
	"fmt"
	"time"

	"fluxia/internal/domain"
)

// Clock yields the current time in the configured location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a clock in loc (UTC when nil).
func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: time.Now}
}

// FixedClock always returns t, converted to loc.
func FixedClock(t time.Time, loc *time.Location) *Clock {
	c := NewClock(loc)
	c.now = func() time.Time { return t }
	return c
}

// LoadClock resolves an IANA zone name such as "Europe/Paris".
func LoadClock(name string) (*Clock, error) {
	if name == "" {
		return NewClock(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return NewClock(loc), nil
}

func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

func (c *Clock) Location() *time.Location { return c.loc }

// Day returns the weekday and YYYY-MM-DD date of t, both in the clock's location.
func (c *Clock) Day(t time.Time) (domain.Weekday, string) {
	local := t.In(c.loc)
	return domain.WeekdayOf(local), local.Format(domain.DateLayout)
}

// Today is Day(Now()).
func (c *Clock) Today() (domain.Weekday, string) {
	return c.Day(c.Now())
}

// answered collects the question keys covered by responses.
func answered(responses []*domain.PatientResponse) map[domain.QuestionKey]bool {
	set := make(map[domain.QuestionKey]bool, len(responses))
	for _, r := range responses {
		set[r.Key()] = true
	}
	return set
}

// AllAnswered reports whether every current question of d has a response.
// Responses to questions no longer in d are ignored.
func AllAnswered(d *domain.Diagnostic, responses []*domain.PatientResponse) bool {
	got := answered(responses)
	for _, k := range d.QuestionKeys() {
		if !got[k] {
			return false
		}
	}
	return true
}

// Unanswered lists current questions of d without a response, in order.
func Unanswered(d *domain.Diagnostic, responses []*domain.PatientResponse) []domain.QuestionKey {
	got := answered(responses)
	var out []domain.QuestionKey
	for _, k := range d.QuestionKeys() {
		if !got[k] {
			out = append(out, k)
		}
	}
	return out
}

// PendingFor reports whether d is scheduled on day and still has
// unanswered questions among responsesToday.
func PendingFor(d *domain.Diagnostic, responsesToday []*domain.PatientResponse, day domain.Weekday) bool {
	if d == nil || !d.ScheduledOn(day) {
		return false
	}
	return !AllAnswered(d, responsesToday)
}

// ExpiresAt is created_at plus duration_days; zero when the diagnostic never expires.
func ExpiresAt(d *domain.Diagnostic) time.Time {
	if d.DurationDays <= 0 {
		return time.Time{}
	}
	return d.CreatedAt.AddDate(0, 0, d.DurationDays)
}

// Active reports whether now is before the diagnostic's expiry.
func Active(d *domain.Diagnostic, now time.Time) bool {
	exp := ExpiresAt(d)
	return exp.IsZero() || now.Before(exp)
}

// NotificationDue reports whether d is scheduled today, now is at or past
// today's notification time, and d has not expired. All in c's location.
func (c *Clock) NotificationDue(d *domain.Diagnostic, now time.Time) bool {
	local := now.In(c.loc)
	day, _ := c.Day(local)
	if !d.ScheduledOn(day) || !Active(d, local) {
		return false
	}
	at, err := time.ParseInLocation("15:04", d.NotificationTime, c.loc)
	if err != nil {
		at, _ = time.ParseInLocation("15:04", domain.DefaultNotificationTime, c.loc)
	}
	due := time.Date(local.Year(), local.Month(), local.Day(), at.Hour(), at.Minute(), 0, 0, c.loc)
	return !local.Before(due)
}
