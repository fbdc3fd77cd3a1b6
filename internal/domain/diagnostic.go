package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultNotificationTime = "09:00"
	DefaultDurationDays     = 7
)

// ErrValidation is wrapped by every Validate failure.
var ErrValidation = errors.New("validation failed")

var notificationTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Category ordered group of questions; stored as JSONB inside diagnostics.categories.
type Category struct {
	Name      string   `json:"name"`
	Questions []string `json:"questions"`
}

// Diagnostic diagnostics table
type Diagnostic struct {
	ID               string     `db:"id" json:"id"`
	DoctorID         string     `db:"doctor_id" json:"doctor_id"` // users.user_id of the author
	Name             string     `db:"name" json:"name"`
	Categories       []Category `db:"categories" json:"categories"`
	FinalMessages    []string   `db:"final_messages" json:"final_messages"`
	ScheduleDays     []Weekday  `db:"schedule_days" json:"schedule_days"`
	NotificationTime string     `db:"notification_time" json:"notification_time"` // HH:MM
	DurationDays     int        `db:"duration_days" json:"duration_days"`
	ChatID           string     `db:"chat_id" json:"chat_id"` // CHAT_XXXXXXXX, UNIQUE
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// QuestionKey identifies one question of one category.
type QuestionKey struct {
	Category string
	Question string
}

// String is the "category:question" form used by answer submissions.
func (k QuestionKey) String() string {
	return k.Category + ":" + k.Question
}

// TotalQuestions counts questions across all categories.
func (d *Diagnostic) TotalQuestions() int {
	n := 0
	for _, c := range d.Categories {
		n += len(c.Questions)
	}
	return n
}

// QuestionKeys lists every (category, question) pair in order.
func (d *Diagnostic) QuestionKeys() []QuestionKey {
	keys := make([]QuestionKey, 0, d.TotalQuestions())
	for _, c := range d.Categories {
		for _, q := range c.Questions {
			keys = append(keys, QuestionKey{Category: c.Name, Question: q})
		}
	}
	return keys
}

// ScheduledOn reports whether day is one of the schedule days.
func (d *Diagnostic) ScheduledOn(day Weekday) bool {
	for _, s := range d.ScheduleDays {
		if s == day {
			return true
		}
	}
	return false
}

// ApplyDefaults fills notification time and duration when unset.
func (d *Diagnostic) ApplyDefaults() {
	if strings.TrimSpace(d.NotificationTime) == "" {
		d.NotificationTime = DefaultNotificationTime
	}
	if d.DurationDays == 0 {
		d.DurationDays = DefaultDurationDays
	}
}

// Validate checks the authoring rules shared by create and update.
// Schedule days are normalised to lowercase in place.
func (d *Diagnostic) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(d.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrValidation)
	}
	// Answer keys are "category:question", so they must stay unique.
	keys := make(map[string]bool, len(d.Categories))
	for _, c := range d.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: every category needs a name", ErrValidation)
		}
		if strings.Contains(c.Name, ":") {
			return fmt.Errorf("%w: category %q must not contain ':'", ErrValidation, c.Name)
		}
		if len(c.Questions) == 0 {
			return fmt.Errorf("%w: category %q needs at least one question", ErrValidation, c.Name)
		}
		for _, q := range c.Questions {
			if strings.TrimSpace(q) == "" {
				return fmt.Errorf("%w: category %q has an empty question", ErrValidation, c.Name)
			}
			k := QuestionKey{Category: c.Name, Question: q}.String()
			if keys[k] {
				return fmt.Errorf("%w: category %q repeats question %q", ErrValidation, c.Name, q)
			}
			keys[k] = true
		}
	}
	if len(d.FinalMessages) == 0 {
		return fmt.Errorf("%w: at least one final message is required", ErrValidation)
	}
	for _, m := range d.FinalMessages {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%w: final messages must not be empty", ErrValidation)
		}
	}
	if len(d.ScheduleDays) == 0 {
		return fmt.Errorf("%w: select at least one schedule day", ErrValidation)
	}
	seen := make(map[Weekday]bool, len(d.ScheduleDays))
	days := make([]Weekday, 0, len(d.ScheduleDays))
	for _, s := range d.ScheduleDays {
		w, err := ParseWeekday(string(s))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if !seen[w] {
			seen[w] = true
			days = append(days, w)
		}
	}
	d.ScheduleDays = days
	if !notificationTimeRe.MatchString(d.NotificationTime) {
		return fmt.Errorf("%w: notification_time must be HH:MM", ErrValidation)
	}
	if d.DurationDays < 1 {
		return fmt.Errorf("%w: duration_days must be at least 1", ErrValidation)
	}
	return nil
}
