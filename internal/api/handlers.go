package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"backoffice/internal/availability"
	"backoffice/internal/model"
	"backoffice/internal/report"
	"backoffice/internal/schedule"
)

// CategoryResponse is a category in API responses.
type CategoryResponse struct {
	ID              int64                `json:"id"`
	Name            string               `json:"name"`
	Schedule        model.ScheduleRecord `json:"schedule"`
	SoldOutSchedule model.SoldOutRecord  `json:"soldOutSchedule"`
	ManualPause     bool                 `json:"manualPause"`
	IsPaused        bool                 `json:"isPaused"`
	IsSoldOut       bool                 `json:"isSoldOut"`
}

// PauseRequest is the body of the pause endpoints.
type PauseRequest struct {
	Paused *bool `json:"paused"`
}

// SoldOutRequest is the body of POST /api/categories/{id}/sold-out.
type SoldOutRequest struct {
	Enabled bool   `json:"enabled"`
	EndTime string `json:"endTime,omitempty"` // Format: HH:MM, empty = until cleared
}

// SpecialDaysRequest is the body of PUT /api/specials/{id}/days.
type SpecialDaysRequest struct {
	Days []int `json:"days"` // 0=Sunday, 6=Saturday
}

// SpecialHoursRequest is the body of PUT /api/special-hours/{day}.
type SpecialHoursRequest struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// AvailabilityResponse answers the availability endpoints.
type AvailabilityResponse struct {
	ID    int64              `json:"id"`
	Day   int                `json:"day"`
	At    string             `json:"at"`
	State *schedule.State    `json:"state,omitempty"`
	Lock  *schedule.ItemLock `json:"lock,omitempty"`
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid id")
		return 0, false
	}
	return id, true
}

// moment reads ?at=HH:MM&day=N, defaulting each to the current restaurant time.
func (s *HTTPServer) moment(w http.ResponseWriter, r *http.Request) (availability.Moment, bool) {
	m := s.svc.Now()
	q := r.URL.Query()

	if at := q.Get("at"); at != "" {
		t, err := schedule.ParseTimeOfDay(at)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "invalid at; expected HH:MM")
			return m, false
		}
		m.Time = t
	}
	if day := q.Get("day"); day != "" {
		d, err := strconv.Atoi(day)
		wd, ok := model.Weekday(d)
		if err != nil || !ok {
			writeError(w, http.StatusBadRequest, "invalid_day", "invalid day; expected 0-6 (0=Sunday)")
			return m, false
		}
		m.Day = wd
	}
	return m, true
}

// handleListCategories returns all categories with cached flags.
// GET /api/categories
func (s *HTTPServer) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]CategoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryResponse{
			ID:              c.ID,
			Name:            c.Name,
			Schedule:        c.Schedule,
			SoldOutSchedule: c.SoldOut,
			ManualPause:     c.ManualPause,
			IsPaused:        c.IsPaused,
			IsSoldOut:       c.IsSoldOut,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/categories/{id}/schedule
func (s *HTTPServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.svc.GetSchedule(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSetSchedule validates and stores a schedule record.
// PUT /api/categories/{id}/schedule
func (s *HTTPServer) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var rec model.ScheduleRecord
	if err := decodeJSON(r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	if err := s.svc.SetScheduleRecord(r.Context(), id, rec); err != nil {
		s.writeServiceError(w, err)
		return
	}
	saved, err := s.svc.GetSchedule(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// GET /api/categories/{id}/overrides
func (s *HTTPServer) handleGetOverrides(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := s.svc.GetOverrides(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// POST /api/categories/{id}/pause
func (s *HTTPServer) handleSetPause(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req PauseRequest
	if err := decodeJSON(r, &req); err != nil || req.Paused == nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "body must be {\"paused\": bool}")
		return
	}
	if err := s.svc.SetManualPause(r.Context(), id, *req.Paused); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.refreshFlags(r.Context())
	o, err := s.svc.GetOverrides(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// POST /api/categories/{id}/sold-out
func (s *HTTPServer) handleSetSoldOut(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SoldOutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	var resumeAt *schedule.TimeOfDay
	if req.Enabled && req.EndTime != "" {
		t, err := schedule.ParseTimeOfDay(req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "invalid endTime; expected HH:MM")
			return
		}
		resumeAt = &t
	}

	if err := s.svc.SetSoldOut(r.Context(), id, req.Enabled, resumeAt); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.refreshFlags(r.Context())
	o, err := s.svc.GetOverrides(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// handleCategoryAvailability evaluates a category live.
// GET /api/categories/{id}/availability?at=HH:MM&day=N
func (s *HTTPServer) handleCategoryAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, ok := s.moment(w, r)
	if !ok {
		return
	}
	st, err := s.svc.Evaluate(r.Context(), id, m)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{ID: id, Day: int(m.Day), At: m.Time.String(), State: &st})
}

// GET /api/items/{id}/availability?at=HH:MM&day=N
func (s *HTTPServer) handleItemAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, ok := s.moment(w, r)
	if !ok {
		return
	}
	lock, err := s.svc.EvaluateItem(r.Context(), id, m)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{ID: id, Day: int(m.Day), At: m.Time.String(), Lock: &lock})
}

// GET /api/specials/{id}/availability?at=HH:MM&day=N
func (s *HTTPServer) handleSpecialAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, ok := s.moment(w, r)
	if !ok {
		return
	}
	st, err := s.svc.EvaluateSpecial(r.Context(), id, m)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{ID: id, Day: int(m.Day), At: m.Time.String(), State: &st})
}

// PUT /api/specials/{id}/days
func (s *HTTPServer) handleSetSpecialDays(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SpecialDaysRequest
	if err := decodeJSON(r, &req); err != nil || req.Days == nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "body must be {\"days\": [int]}")
		return
	}
	days := make([]time.Weekday, 0, len(req.Days))
	for _, d := range req.Days {
		days = append(days, time.Weekday(d))
	}
	if err := s.svc.SetSpecialDays(r.Context(), id, days); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/specials/{id}/pause
func (s *HTTPServer) handleSetSpecialPause(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req PauseRequest
	if err := decodeJSON(r, &req); err != nil || req.Paused == nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "body must be {\"paused\": bool}")
		return
	}
	if err := s.svc.SetSpecialPause(r.Context(), id, *req.Paused); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.refreshFlags(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/special-hours
func (s *HTTPServer) handleListSpecialHours(w http.ResponseWriter, r *http.Request) {
	hours, err := s.svc.SpecialHours(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]model.SpecialHour, 0, len(hours))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if win, ok := hours[d]; ok {
			out = append(out, model.SpecialHour{Day: int(d), StartTime: win.Start.String(), EndTime: win.End.String()})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// PUT /api/special-hours/{day}
func (s *HTTPServer) handleSetSpecialHours(w http.ResponseWriter, r *http.Request) {
	d, err := strconv.Atoi(r.PathValue("day"))
	day, ok := model.Weekday(d)
	if err != nil || !ok {
		writeError(w, http.StatusBadRequest, "invalid_day", "invalid day; expected 0-6 (0=Sunday)")
		return
	}
	var req SpecialHoursRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	start, err := schedule.ParseTimeOfDay(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", "invalid startTime; expected HH:MM")
		return
	}
	end, err := schedule.ParseTimeOfDay(req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", "invalid endTime; expected HH:MM")
		return
	}
	win := schedule.Window{Start: start, End: end}
	if err := s.svc.SetSpecialWindow(r.Context(), day, win); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SpecialHour{Day: d, StartTime: start.String(), EndTime: end.String()})
}

// handleMenu returns every entry classified from cached flags.
// GET /api/menu
func (s *HTTPServer) handleMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := s.svc.Menu(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

// refreshFlags runs a tick after an override write so the cached flags, and
// the reasons the menu derives from them, reflect it. A skipped or failed tick
// leaves the flags to the next scheduled one.
func (s *HTTPServer) refreshFlags(ctx context.Context) {
	if s.reconciler == nil {
		return
	}
	stats, err := s.reconciler.RunNow(ctx)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Msg("refresh flags after override write")
	case stats.Skipped:
		s.logger.Debug().Msg("flag refresh skipped, tick in progress")
	}
}

// POST /api/reconcile
func (s *HTTPServer) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "reconciler not configured")
		return
	}
	stats, err := s.reconciler.RunNow(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if stats.Skipped {
		writeJSON(w, http.StatusConflict, stats)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /api/reports/availability.xlsx
func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cats, err := s.svc.Categories(ctx)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	menu, err := s.svc.Menu(ctx)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	hours, err := s.svc.SpecialHours(ctx)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	generated := time.Now().In(s.svc.Location())
	if err := report.Write(&buf, report.Snapshot{
		GeneratedAt:  generated,
		Categories:   cats,
		Menu:         menu,
		SpecialHours: hours,
	}); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="availability_%s.xlsx"`, generated.Format("20060102_1504")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
