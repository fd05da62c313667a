package model

import "time"

// Category is a menu category with its optional schedule and overrides.
// IsPaused and IsSoldOut are cached by the reconciler.
type Category struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Schedule    ScheduleRecord `json:"schedule"`
	SoldOut     SoldOutRecord  `json:"soldOutSchedule"`
	ManualPause bool           `json:"manualPause"`
	IsPaused    bool           `json:"isPaused"`
	IsSoldOut   bool           `json:"isSoldOut"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// MenuItem belongs to one or more categories by name.
type MenuItem struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Categories []string  `json:"categories"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SpecialItem is a "today's special" offered on an explicit set of weekdays.
type SpecialItem struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Days        []int     `json:"days"` // 0-6 (Sunday-Saturday)
	ManualPause bool      `json:"manualPause"`
	IsPaused    bool      `json:"isPaused"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SpecialHour is the global special-item window for one weekday.
type SpecialHour struct {
	Day       int       `json:"day"`
	StartTime string    `json:"startTime"` // "12:00"
	EndTime   string    `json:"endTime"`   // "16:00"
	UpdatedAt time.Time `json:"updated_at"`
}
