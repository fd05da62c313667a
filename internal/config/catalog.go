package config

import (
	"fmt"
	"os"

	"backoffice/internal/model"
	"backoffice/internal/schedule"

	"gopkg.in/yaml.v3"
)

// CategoryConfig is a category declared in catalog.yaml.
type CategoryConfig struct {
	Name     string                  `yaml:"name"`
	Schedule *CategoryScheduleConfig `yaml:"schedule,omitempty"`
}

// CategoryScheduleConfig mirrors the client schedule record.
type CategoryScheduleConfig struct {
	Type       string            `yaml:"type"`                 // "daily" | "custom"
	StartTime  string            `yaml:"start_time,omitempty"` // "09:00"
	EndTime    string            `yaml:"end_time,omitempty"`   // "22:00"
	Days       []int             `yaml:"days,omitempty"`       // 0=Sun, 6=Sat
	CustomDays []CustomDayConfig `yaml:"custom_days,omitempty"`
}

// CustomDayConfig is one weekday of a custom category schedule.
type CustomDayConfig struct {
	Day       int    `yaml:"day"`
	Enabled   bool   `yaml:"enabled"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
}

// MenuItemConfig is a menu item and the categories it appears in.
type MenuItemConfig struct {
	Name       string   `yaml:"name"`
	Categories []string `yaml:"categories"`
}

// SpecialItemConfig is a special bound to weekdays.
type SpecialItemConfig struct {
	Name string `yaml:"name"`
	Days []int  `yaml:"days"`
}

// SpecialHourConfig is the shared special-item window for a weekday.
type SpecialHourConfig struct {
	Day       int    `yaml:"day"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
}

// CatalogConfig is the root of catalog.yaml.
type CatalogConfig struct {
	Categories   []CategoryConfig    `yaml:"categories"`
	Items        []MenuItemConfig    `yaml:"items"`
	Specials     []SpecialItemConfig `yaml:"specials"`
	SpecialHours []SpecialHourConfig `yaml:"special_hours"`
}

// LoadCatalogConfig loads and validates the catalog seed file.
func LoadCatalogConfig(path string) (*CatalogConfig, error) {
	if path == "" {
		path = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog config: %w", err)
	}

	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog config: %w", err)
	}

	return &cfg, nil
}

// Record converts the YAML schedule into the persisted record shape.
// A nil schedule yields a disabled record.
func (s *CategoryScheduleConfig) Record() model.ScheduleRecord {
	if s == nil {
		return model.ScheduleRecord{Enabled: false, Type: string(schedule.ModeUniform)}
	}
	rec := model.ScheduleRecord{
		Enabled:   true,
		Type:      s.Type,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Days:      s.Days,
	}
	if rec.Type == "" {
		rec.Type = string(schedule.ModeUniform)
	}
	for _, cd := range s.CustomDays {
		rec.CustomDays = append(rec.CustomDays, model.CustomDayRecord{
			Day:       cd.Day,
			Enabled:   cd.Enabled,
			StartTime: cd.StartTime,
			EndTime:   cd.EndTime,
		})
	}
	return rec
}

// Validate checks the catalog for errors.
func (c *CatalogConfig) Validate() error {
	names := make(map[string]bool)

	for i, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
		if names[cat.Name] {
			return fmt.Errorf("categories[%d]: duplicate name '%s'", i, cat.Name)
		}
		names[cat.Name] = true

		if cat.Schedule == nil {
			continue
		}
		ws, err := cat.Schedule.Record().ToWeekly()
		if err == nil {
			err = schedule.ValidateSchedule(ws)
		}
		if err != nil {
			return fmt.Errorf("categories[%d].schedule: %w", i, err)
		}
	}

	items := make(map[string]bool)
	for i, item := range c.Items {
		if item.Name == "" {
			return fmt.Errorf("items[%d]: name is required", i)
		}
		if items[item.Name] {
			return fmt.Errorf("items[%d]: duplicate name '%s'", i, item.Name)
		}
		items[item.Name] = true

		if len(item.Categories) == 0 {
			return fmt.Errorf("items[%d]: at least one category is required", i)
		}
		for j, cat := range item.Categories {
			if !names[cat] {
				return fmt.Errorf("items[%d].categories[%d]: unknown category '%s'", i, j, cat)
			}
		}
	}

	specials := make(map[string]bool)
	for i, sp := range c.Specials {
		if sp.Name == "" {
			return fmt.Errorf("specials[%d]: name is required", i)
		}
		if specials[sp.Name] {
			return fmt.Errorf("specials[%d]: duplicate name '%s'", i, sp.Name)
		}
		specials[sp.Name] = true

		for j, d := range sp.Days {
			if _, ok := model.Weekday(d); !ok {
				return fmt.Errorf("specials[%d].days[%d]: invalid day %d, must be 0-6 (0=Sun, 6=Sat)", i, j, d)
			}
		}
	}

	seenDays := make(map[int]bool)
	for i, h := range c.SpecialHours {
		wd, ok := model.Weekday(h.Day)
		if !ok {
			return fmt.Errorf("special_hours[%d]: invalid day %d, must be 0-6 (0=Sun, 6=Sat)", i, h.Day)
		}
		if seenDays[h.Day] {
			return fmt.Errorf("special_hours[%d]: duplicate day %d", i, h.Day)
		}
		seenDays[h.Day] = true

		start, err := schedule.ParseTimeOfDay(h.StartTime)
		if err != nil {
			return fmt.Errorf("special_hours[%d].start_time: %w", i, err)
		}
		end, err := schedule.ParseTimeOfDay(h.EndTime)
		if err != nil {
			return fmt.Errorf("special_hours[%d].end_time: %w", i, err)
		}
		if err := schedule.ValidateDayWindow(wd, schedule.Window{Start: start, End: end}); err != nil {
			return fmt.Errorf("special_hours[%d]: %w", i, err)
		}
	}

	return nil
}

// String returns a summary of the catalog.
func (c *CatalogConfig) String() string {
	return fmt.Sprintf("CatalogConfig: %d categories, %d items, %d specials, %d special hours",
		len(c.Categories), len(c.Items), len(c.Specials), len(c.SpecialHours))
}
