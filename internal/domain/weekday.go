package domain

import (
	"fmt"
	"strings"
	"time"
)

// Weekday lowercase English day name as stored in diagnostics.schedule_days.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// AllWeekdays in display order (monday first).
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday accepts any case and surrounding whitespace.
func ParseWeekday(s string) (Weekday, error) {
	d := Weekday(strings.ToLower(strings.TrimSpace(s)))
	for _, w := range AllWeekdays {
		if d == w {
			return d, nil
		}
	}
	return "", fmt.Errorf("invalid weekday %q", s)
}

// WeekdayOf returns the weekday of t in t's own location.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(strings.ToLower(t.Weekday().String()))
}
