package schedule

import "time"

// Mode selects how a WeeklySchedule maps weekdays to windows.
type Mode string

const (
	// ModeUniform applies one window to every day.
	ModeUniform Mode = "daily"
	// ModePerDay gives each weekday its own slot.
	ModePerDay Mode = "custom"
)

// DaySlot is a single weekday's entry in a per-day schedule.
type DaySlot struct {
	Enabled bool
	Window  Window
}

// WeeklySchedule is the optional weekly rule attached to a category.
type WeeklySchedule struct {
	Enabled       bool
	Mode          Mode
	UniformWindow Window
	PerDay        map[time.Weekday]DaySlot
}

// Constraint is the outcome of resolving a schedule for one weekday.
type Constraint int

const (
	// Unconstrained means the schedule imposes nothing; the entry is open all day.
	Unconstrained Constraint = iota
	// Windowed means the entry is open only inside DayWindow.Window.
	Windowed
	// Disabled means the day is explicitly closed all day.
	Disabled
)

func (c Constraint) String() string {
	switch c {
	case Windowed:
		return "windowed"
	case Disabled:
		return "disabled"
	default:
		return "unconstrained"
	}
}

// DayWindow is the effective rule for one weekday.
type DayWindow struct {
	Constraint Constraint
	Window     Window
}

// Open reports whether now is inside the day's rule.
func (d DayWindow) Open(now TimeOfDay) bool {
	switch d.Constraint {
	case Windowed:
		return d.Window.IsOpen(now)
	case Disabled:
		return false
	default:
		return true
	}
}

// EffectiveWindow resolves the schedule for a weekday.
func (s WeeklySchedule) EffectiveWindow(day time.Weekday) DayWindow {
	if !s.Enabled {
		return DayWindow{Constraint: Unconstrained}
	}
	if s.Mode == ModePerDay {
		slot, ok := s.PerDay[day]
		if !ok || !slot.Enabled {
			return DayWindow{Constraint: Disabled}
		}
		return DayWindow{Constraint: Windowed, Window: slot.Window}
	}
	return DayWindow{Constraint: Windowed, Window: s.UniformWindow}
}

// EnabledDays returns the weekdays with an enabled slot, Sunday first.
func (s WeeklySchedule) EnabledDays() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if slot, ok := s.PerDay[d]; ok && slot.Enabled {
			days = append(days, d)
		}
	}
	return days
}

// IsCategoryOpen applies the category rule: unscheduled categories are open.
func IsCategoryOpen(s WeeklySchedule, day time.Weekday, now TimeOfDay) bool {
	return s.EffectiveWindow(day).Open(now)
}

// SpecialHours holds the global per-weekday window shared by all special items.
// A weekday without an entry is open all day.
type SpecialHours map[time.Weekday]Window

// SpecialBinding is the set of weekdays a special item is offered on.
type SpecialBinding struct {
	Days map[time.Weekday]bool
}

// NewSpecialBinding builds a binding from a weekday list.
func NewSpecialBinding(days ...time.Weekday) SpecialBinding {
	b := SpecialBinding{Days: make(map[time.Weekday]bool, len(days))}
	for _, d := range days {
		b.Days[d] = true
	}
	return b
}

// Bound reports whether the item is offered on day.
func (b SpecialBinding) Bound(day time.Weekday) bool {
	return b.Days[day]
}

// EffectiveWindow resolves the special-item rule. Unbound days are Disabled.
func (b SpecialBinding) EffectiveWindow(hours SpecialHours, day time.Weekday) DayWindow {
	if !b.Bound(day) {
		return DayWindow{Constraint: Disabled}
	}
	w, ok := hours[day]
	if !ok {
		return DayWindow{Constraint: Unconstrained}
	}
	return DayWindow{Constraint: Windowed, Window: w}
}

// IsOpen applies the special-item rule: closed on unbound days regardless of time.
func (b SpecialBinding) IsOpen(hours SpecialHours, day time.Weekday, now TimeOfDay) bool {
	return b.EffectiveWindow(hours, day).Open(now)
}
