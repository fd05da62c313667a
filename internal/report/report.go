// Package report exports the availability snapshot as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"backoffice/internal/availability"
	"backoffice/internal/model"
	"backoffice/internal/schedule"
)

// Snapshot is everything the workbook shows.
type Snapshot struct {
	GeneratedAt  time.Time
	Categories   []model.Category
	Menu         *availability.Menu
	SpecialHours schedule.SpecialHours
}

var (
	categoryColumns = []string{"ID", "Category", "Schedule", "Manual pause", "Sold out", "Sold out until", "Open", "Reason"}
	itemColumns     = []string{"ID", "Item", "Categories", "Locked", "Reason", "Blocking categories"}
	specialColumns  = []string{"ID", "Special", "Days", "Open", "Reason"}
	hoursColumns    = []string{"Day", "Window"}
)

// Write renders snap as xlsx into w.
func Write(w io.Writer, snap Snapshot) error {
	sw := newSheetWriter()
	defer sw.Close()

	if err := writeCategories(sw, snap); err != nil {
		return fmt.Errorf("categories sheet: %w", err)
	}
	if err := writeItems(sw, snap); err != nil {
		return fmt.Errorf("items sheet: %w", err)
	}
	if err := writeSpecials(sw, snap); err != nil {
		return fmt.Errorf("specials sheet: %w", err)
	}

	return sw.Save(w)
}

func writeCategories(sw *sheetWriter, snap Snapshot) error {
	if err := sw.AddSheet("Categories"); err != nil {
		return err
	}
	if err := sw.WriteHeader(categoryColumns); err != nil {
		return err
	}

	states := make(map[int64]schedule.State)
	if snap.Menu != nil {
		for _, c := range snap.Menu.Categories {
			states[c.ID] = c.State
		}
	}

	for _, c := range snap.Categories {
		st, ok := states[c.ID]
		if !ok {
			st = schedule.StateFromCache(c.IsPaused, c.IsSoldOut, c.ManualPause)
		}
		until := ""
		if c.SoldOut.Enabled {
			until = c.SoldOut.EndTime
			if until == "" {
				until = "until cleared"
			}
		}
		if err := sw.WriteRow([]any{
			c.ID, c.Name, DescribeSchedule(c.Schedule), yesNo(c.ManualPause), yesNo(c.SoldOut.Enabled),
			until, yesNo(st.Open), string(st.Reason),
		}); err != nil {
			return err
		}
	}

	return sw.WriteRow([]any{"Generated", snap.GeneratedAt.Format(time.RFC3339)})
}

func writeItems(sw *sheetWriter, snap Snapshot) error {
	if err := sw.AddSheet("Items"); err != nil {
		return err
	}
	if err := sw.WriteHeader(itemColumns); err != nil {
		return err
	}
	if snap.Menu == nil {
		return nil
	}

	for _, it := range snap.Menu.Items {
		if err := sw.WriteRow([]any{
			it.ID, it.Name, strings.Join(it.Categories, ", "), yesNo(it.Lock.Locked),
			string(it.Lock.Kind), strings.Join(it.Lock.BlockingCategories, ", "),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeSpecials(sw *sheetWriter, snap Snapshot) error {
	if err := sw.AddSheet("Specials"); err != nil {
		return err
	}
	if err := sw.WriteHeader(specialColumns); err != nil {
		return err
	}

	if snap.Menu != nil {
		for _, sp := range snap.Menu.Specials {
			days := make([]string, 0, len(sp.Days))
			for _, d := range sp.Days {
				if wd, ok := model.Weekday(d); ok {
					days = append(days, wd.String()[:3])
				}
			}
			if err := sw.WriteRow([]any{
				sp.ID, sp.Name, strings.Join(days, ", "), yesNo(sp.State.Open), string(sp.State.Reason),
			}); err != nil {
				return err
			}
		}
	}

	if err := sw.AddSheet("Special hours"); err != nil {
		return err
	}
	if err := sw.WriteHeader(hoursColumns); err != nil {
		return err
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		window := "all day"
		if w, ok := snap.SpecialHours[d]; ok {
			window = w.String()
		}
		if err := sw.WriteRow([]any{d.String(), window}); err != nil {
			return err
		}
	}
	return nil
}

// DescribeSchedule renders a persisted schedule for people.
func DescribeSchedule(rec model.ScheduleRecord) string {
	ws := rec.Weekly()
	if !ws.Enabled {
		return "always open"
	}
	if ws.Mode == schedule.ModeUniform {
		return "daily " + ws.UniformWindow.String()
	}

	var parts []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		dw := ws.EffectiveWindow(d)
		if dw.Constraint == schedule.Windowed {
			parts = append(parts, fmt.Sprintf("%s %s", d.String()[:3], dw.Window))
		}
	}
	return strings.Join(parts, "; ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
