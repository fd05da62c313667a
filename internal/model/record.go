package model

import (
	"sort"
	"time"

	"backoffice/internal/schedule"
)

// DateLayout is the calendar date format used for sold-out bookkeeping.
const DateLayout = "2006-01-02"

// ScheduleRecord is the client-facing schedule shape. Times are "HH:MM".
type ScheduleRecord struct {
	Enabled    bool              `json:"enabled"`
	Type       string            `json:"type"` // "daily" | "custom"
	StartTime  string            `json:"startTime,omitempty"`
	EndTime    string            `json:"endTime,omitempty"`
	Days       []int             `json:"days,omitempty"`
	CustomDays []CustomDayRecord `json:"customDays,omitempty"`
}

// CustomDayRecord is one weekday of a "custom" schedule.
type CustomDayRecord struct {
	Day       int    `json:"day"`
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// SoldOutRecord is the client-facing sold-out override.
// SetOn is the restaurant-local date the override was placed.
type SoldOutRecord struct {
	Enabled bool   `json:"enabled"`
	EndTime string `json:"endTime,omitempty"`
	SetOn   string `json:"setOn,omitempty"`
}

// Weekday converts a 0-6 day number.
func Weekday(d int) (time.Weekday, bool) {
	if d < 0 || d > 6 {
		return 0, false
	}
	return time.Weekday(d), true
}

func parseWindow(day *time.Weekday, start, end string, verr *schedule.ValidationError) (schedule.Window, bool) {
	s, err := schedule.ParseTimeOfDay(start)
	if err != nil {
		verr.Issues = append(verr.Issues, schedule.Issue{Day: day, Message: "invalid startTime, expected HH:MM"})
		return schedule.Window{}, false
	}
	e, err := schedule.ParseTimeOfDay(end)
	if err != nil {
		verr.Issues = append(verr.Issues, schedule.Issue{Day: day, Message: "invalid endTime, expected HH:MM"})
		return schedule.Window{}, false
	}
	return schedule.Window{Start: s, End: e}, true
}

// ToWeekly converts the record into an engine schedule.
// Format problems are returned as a *schedule.ValidationError; rule checks are
// left to schedule.ValidateSchedule.
func (r ScheduleRecord) ToWeekly() (schedule.WeeklySchedule, error) {
	if !r.Enabled {
		return schedule.WeeklySchedule{}, nil
	}

	verr := &schedule.ValidationError{}
	out := schedule.WeeklySchedule{Enabled: true}

	switch schedule.Mode(r.Type) {
	case schedule.ModeUniform, "":
		w, ok := parseWindow(nil, r.StartTime, r.EndTime, verr)
		if !ok {
			return schedule.WeeklySchedule{}, verr
		}
		if len(r.Days) == 0 {
			out.Mode = schedule.ModeUniform
			out.UniformWindow = w
			return out, nil
		}
		// A daily window restricted to listed days.
		out.Mode = schedule.ModePerDay
		out.PerDay = make(map[time.Weekday]schedule.DaySlot, len(r.Days))
		for _, d := range r.Days {
			wd, ok := Weekday(d)
			if !ok {
				verr.Issues = append(verr.Issues, schedule.Issue{Message: schedule.MsgInvalidWeekday})
				continue
			}
			out.PerDay[wd] = schedule.DaySlot{Enabled: true, Window: w}
		}
	case schedule.ModePerDay:
		out.Mode = schedule.ModePerDay
		out.PerDay = make(map[time.Weekday]schedule.DaySlot, len(r.CustomDays))
		for _, cd := range r.CustomDays {
			wd, ok := Weekday(cd.Day)
			if !ok {
				verr.Issues = append(verr.Issues, schedule.Issue{Message: schedule.MsgInvalidWeekday})
				continue
			}
			if !cd.Enabled {
				out.PerDay[wd] = schedule.DaySlot{Enabled: false}
				continue
			}
			w, ok := parseWindow(&wd, cd.StartTime, cd.EndTime, verr)
			if !ok {
				continue
			}
			out.PerDay[wd] = schedule.DaySlot{Enabled: true, Window: w}
		}
	default:
		verr.Issues = append(verr.Issues, schedule.Issue{Message: schedule.MsgUnknownMode})
	}

	if len(verr.Issues) > 0 {
		return schedule.WeeklySchedule{}, verr
	}
	return out, nil
}

// Weekly converts a stored record leniently: a record that does not parse or
// fails validation is treated as no schedule.
func (r ScheduleRecord) Weekly() schedule.WeeklySchedule {
	s, err := r.ToWeekly()
	if err != nil {
		return schedule.WeeklySchedule{}
	}
	if err := schedule.ValidateSchedule(s); err != nil {
		return schedule.WeeklySchedule{}
	}
	return s
}

// Normalized returns r in the shape it was sent with times reformatted as
// "HH:MM", weekday lists sorted and deduplicated, and custom days in weekday
// order. Times that do not parse are kept as sent.
func (r ScheduleRecord) Normalized() ScheduleRecord {
	out := ScheduleRecord{
		Enabled:   r.Enabled,
		Type:      r.Type,
		StartTime: normalizeTime(r.StartTime),
		EndTime:   normalizeTime(r.EndTime),
	}
	if out.Type == "" {
		out.Type = string(schedule.ModeUniform)
	}

	if len(r.Days) > 0 {
		seen := make(map[int]bool, len(r.Days))
		for _, d := range r.Days {
			if !seen[d] {
				seen[d] = true
				out.Days = append(out.Days, d)
			}
		}
		sort.Ints(out.Days)
	}

	for _, cd := range r.CustomDays {
		cd.StartTime = normalizeTime(cd.StartTime)
		cd.EndTime = normalizeTime(cd.EndTime)
		out.CustomDays = append(out.CustomDays, cd)
	}
	sort.SliceStable(out.CustomDays, func(i, j int) bool {
		return out.CustomDays[i].Day < out.CustomDays[j].Day
	})
	return out
}

func normalizeTime(s string) string {
	t, err := schedule.ParseTimeOfDay(s)
	if err != nil {
		return s
	}
	return t.String()
}

// FromWeekly builds the client-facing record for an engine schedule.
func FromWeekly(s schedule.WeeklySchedule) ScheduleRecord {
	if !s.Enabled {
		return ScheduleRecord{Enabled: false, Type: string(schedule.ModeUniform)}
	}
	if s.Mode != schedule.ModePerDay {
		return ScheduleRecord{
			Enabled:   true,
			Type:      string(schedule.ModeUniform),
			StartTime: s.UniformWindow.Start.String(),
			EndTime:   s.UniformWindow.End.String(),
		}
	}

	rec := ScheduleRecord{Enabled: true, Type: string(schedule.ModePerDay)}
	days := make([]int, 0, len(s.PerDay))
	for d := range s.PerDay {
		days = append(days, int(d))
	}
	sort.Ints(days)
	for _, d := range days {
		slot := s.PerDay[time.Weekday(d)]
		cd := CustomDayRecord{Day: d, Enabled: slot.Enabled}
		if slot.Enabled {
			cd.StartTime = slot.Window.Start.String()
			cd.EndTime = slot.Window.End.String()
		}
		rec.CustomDays = append(rec.CustomDays, cd)
	}
	return rec
}

// Override converts the record into an engine override. An unparseable EndTime
// leaves the override active with no resume time.
func (r SoldOutRecord) Override() schedule.SoldOutOverride {
	o := schedule.SoldOutOverride{Active: r.Enabled}
	if r.Enabled && r.EndTime != "" {
		if t, err := schedule.ParseTimeOfDay(r.EndTime); err == nil {
			o.ResumeAt = &t
		}
	}
	return o
}

// SetBefore reports whether the override was placed on a date earlier than today.
func (r SoldOutRecord) SetBefore(today time.Time) bool {
	if r.SetOn == "" {
		return false
	}
	return r.SetOn < today.Format(DateLayout)
}

// Binding converts the stored day list into an engine binding, skipping invalid days.
func (s SpecialItem) Binding() schedule.SpecialBinding {
	days := make([]time.Weekday, 0, len(s.Days))
	for _, d := range s.Days {
		if wd, ok := Weekday(d); ok {
			days = append(days, wd)
		}
	}
	return schedule.NewSpecialBinding(days...)
}

// SpecialHoursFrom converts stored rows into the engine map, skipping malformed rows.
func SpecialHoursFrom(rows []SpecialHour) schedule.SpecialHours {
	hours := make(schedule.SpecialHours, len(rows))
	for _, row := range rows {
		wd, ok := Weekday(row.Day)
		if !ok {
			continue
		}
		start, err := schedule.ParseTimeOfDay(row.StartTime)
		if err != nil {
			continue
		}
		end, err := schedule.ParseTimeOfDay(row.EndTime)
		if err != nil || start == end {
			continue
		}
		hours[wd] = schedule.Window{Start: start, End: end}
	}
	return hours
}
