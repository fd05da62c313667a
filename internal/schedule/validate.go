package schedule

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinWindowMinutes is the shortest accepted same-day window.
	MinWindowMinutes = 15
	// MinOvernightGapMinutes is the smallest start-end gap accepted for an overnight window.
	MinOvernightGapMinutes = 60
)

// Validation messages.
const (
	MsgSameStartEnd      = "start and end time cannot be the same"
	MsgTooShort          = "must be at least 15 minutes long"
	MsgOvernightGap      = "if you want an overnight schedule, ensure at least 1 hour gap"
	MsgNoEnabledDays     = "enable at least one day"
	MsgTimeOutOfRange    = "time must be between 00:00 and 23:59"
	MsgUnknownMode       = "schedule type must be daily or custom"
	MsgInvalidWeekday    = "day must be between 0 (Sunday) and 6 (Saturday)"
	MsgResumeNotInFuture = "resume time must be later today"
)

// Issue is a single rule violation. Day is nil for issues not tied to a weekday.
type Issue struct {
	Day     *time.Weekday
	Message string
}

func (i Issue) String() string {
	if i.Day == nil {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.Day.String(), i.Message)
}

// ValidationError collects every violation found in a candidate schedule.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return "invalid schedule: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(day *time.Weekday, msg string) {
	e.Issues = append(e.Issues, Issue{Day: day, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

// NewValidationError returns a ValidationError holding a single issue.
func NewValidationError(day *time.Weekday, msg string) *ValidationError {
	e := &ValidationError{}
	e.add(day, msg)
	return e
}

// windowIssue returns the first rule a window breaks, or "".
func windowIssue(w Window) string {
	if !w.Start.Valid() || !w.End.Valid() {
		return MsgTimeOutOfRange
	}
	if w.Start == w.End {
		return MsgSameStartEnd
	}
	if w.Overnight() {
		if int(w.Start-w.End) < MinOvernightGapMinutes {
			return MsgOvernightGap
		}
		return ""
	}
	if int(w.End-w.Start) < MinWindowMinutes {
		return MsgTooShort
	}
	return ""
}

// ValidateWindow checks a single window.
func ValidateWindow(w Window) error {
	if msg := windowIssue(w); msg != "" {
		return NewValidationError(nil, msg)
	}
	return nil
}

// ValidateDayWindow checks a window and attributes any issue to day.
func ValidateDayWindow(day time.Weekday, w Window) error {
	if msg := windowIssue(w); msg != "" {
		return NewValidationError(&day, msg)
	}
	return nil
}

// ValidateSchedule checks a schedule before it is accepted.
// Disabled schedules are accepted as-is; their windows are never evaluated.
func ValidateSchedule(s WeeklySchedule) error {
	if !s.Enabled {
		return nil
	}

	verr := &ValidationError{}
	switch s.Mode {
	case ModeUniform:
		if msg := windowIssue(s.UniformWindow); msg != "" {
			verr.add(nil, msg)
		}
	case ModePerDay:
		enabled := 0
		for d := time.Sunday; d <= time.Saturday; d++ {
			slot, ok := s.PerDay[d]
			if !ok || !slot.Enabled {
				continue
			}
			enabled++
			if msg := windowIssue(slot.Window); msg != "" {
				day := d
				verr.add(&day, msg)
			}
		}
		for d := range s.PerDay {
			if d < time.Sunday || d > time.Saturday {
				verr.add(nil, MsgInvalidWeekday)
				break
			}
		}
		if enabled == 0 {
			verr.add(nil, MsgNoEnabledDays)
		}
	default:
		verr.add(nil, MsgUnknownMode)
	}
	return verr.orNil()
}
