// Package availability answers whether categories, menu items and specials can be
// ordered, and accepts the operator writes that change that answer.
package availability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"backoffice/internal/metrics"
	"backoffice/internal/model"
	"backoffice/internal/schedule"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned for unknown categories, items and specials.
// Errors wrapping it also match sql.ErrNoRows.
var ErrNotFound = errors.New("not found")

// Store is the persistence the service needs. *db.DB implements it.
type Store interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	SetCategorySchedule(ctx context.Context, id int64, rec model.ScheduleRecord) error
	SetCategoryManualPause(ctx context.Context, id int64, paused bool) error
	SetCategorySoldOut(ctx context.Context, id int64, rec model.SoldOutRecord) error

	ListItems(ctx context.Context) ([]model.MenuItem, error)
	GetItem(ctx context.Context, id int64) (*model.MenuItem, error)

	ListSpecials(ctx context.Context) ([]model.SpecialItem, error)
	GetSpecial(ctx context.Context, id int64) (*model.SpecialItem, error)
	SetSpecialDays(ctx context.Context, id int64, days []int) error
	SetSpecialManualPause(ctx context.Context, id int64, paused bool) error
	ListSpecialHours(ctx context.Context) ([]model.SpecialHour, error)
	UpsertSpecialHour(ctx context.Context, h model.SpecialHour) error
}

// Moment is a restaurant-local weekday and time of day.
type Moment struct {
	Day  time.Weekday
	Time schedule.TimeOfDay
}

// MomentOf converts t into loc and truncates it to the minute.
func MomentOf(t time.Time, loc *time.Location) Moment {
	t = t.In(loc)
	return Moment{Day: t.Weekday(), Time: schedule.FromTime(t)}
}

func (m Moment) String() string {
	return fmt.Sprintf("%s %s", m.Day, m.Time)
}

// Overrides is the operator-controlled state of a category.
type Overrides struct {
	ManualPause bool                `json:"manualPause"`
	SoldOut     model.SoldOutRecord `json:"soldOutSchedule"`
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records validation rejections.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

type Service struct {
	store   Store
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewService(store Store, loc *time.Location, logger zerolog.Logger, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		store:  store,
		loc:    loc,
		now:    time.Now,
		logger: logger.With().Str("component", "availability").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the current restaurant-local moment.
func (s *Service) Now() Moment {
	return MomentOf(s.now(), s.loc)
}

// Location is the restaurant time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func (s *Service) rejected(err error) error {
	var verr *schedule.ValidationError
	if errors.As(err, &verr) {
		s.metrics.IncValidationRejection()
	}
	return err
}

// Categories lists categories with their cached flags.
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	return s.store.ListCategories(ctx)
}

// GetSchedule returns the persisted schedule record of a category.
func (s *Service) GetSchedule(ctx context.Context, categoryID int64) (model.ScheduleRecord, error) {
	c, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return model.ScheduleRecord{}, notFound(err)
	}
	return c.Schedule, nil
}

// GetOverrides returns the manual pause and sold-out state of a category.
func (s *Service) GetOverrides(ctx context.Context, categoryID int64) (Overrides, error) {
	c, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return Overrides{}, notFound(err)
	}
	return Overrides{ManualPause: c.ManualPause, SoldOut: c.SoldOut}, nil
}

// SetSchedule validates and stores a category schedule.
// Rejections are *schedule.ValidationError.
func (s *Service) SetSchedule(ctx context.Context, categoryID int64, ws schedule.WeeklySchedule) error {
	return s.storeSchedule(ctx, categoryID, ws, model.FromWeekly(ws))
}

// SetScheduleRecord validates a client record and stores it in the shape it
// was sent, so a "daily" record with a days subset reads back unchanged.
func (s *Service) SetScheduleRecord(ctx context.Context, categoryID int64, rec model.ScheduleRecord) error {
	ws, err := rec.ToWeekly()
	if err != nil {
		return s.rejected(err)
	}
	return s.storeSchedule(ctx, categoryID, ws, rec.Normalized())
}

func (s *Service) storeSchedule(ctx context.Context, categoryID int64, ws schedule.WeeklySchedule, rec model.ScheduleRecord) error {
	if err := schedule.ValidateSchedule(ws); err != nil {
		return s.rejected(err)
	}
	if err := s.store.SetCategorySchedule(ctx, categoryID, rec); err != nil {
		return notFound(err)
	}
	s.logger.Info().Int64("category_id", categoryID).Bool("enabled", ws.Enabled).Str("mode", string(ws.Mode)).Msg("schedule updated")
	return nil
}

func (s *Service) SetManualPause(ctx context.Context, categoryID int64, paused bool) error {
	if err := s.store.SetCategoryManualPause(ctx, categoryID, paused); err != nil {
		return notFound(err)
	}
	s.logger.Info().Int64("category_id", categoryID).Bool("paused", paused).Msg("manual pause updated")
	return nil
}

// SetSoldOut places or clears a sold-out override. A resumeAt must be later
// today; overrides do not carry past midnight.
func (s *Service) SetSoldOut(ctx context.Context, categoryID int64, active bool, resumeAt *schedule.TimeOfDay) error {
	rec := model.SoldOutRecord{}
	if active {
		today := s.today()
		rec.Enabled = true
		rec.SetOn = today.Format(model.DateLayout)
		if resumeAt != nil {
			if !resumeAt.Valid() {
				return s.rejected(schedule.NewValidationError(nil, schedule.MsgTimeOutOfRange))
			}
			if *resumeAt <= schedule.FromTime(today) {
				return s.rejected(schedule.NewValidationError(nil, schedule.MsgResumeNotInFuture))
			}
			rec.EndTime = resumeAt.String()
		}
	}

	if err := s.store.SetCategorySoldOut(ctx, categoryID, rec); err != nil {
		return notFound(err)
	}
	s.logger.Info().Int64("category_id", categoryID).Bool("active", active).Str("resume_at", rec.EndTime).Msg("sold-out updated")
	return nil
}

// SetSpecialDays replaces the weekdays a special item is offered on.
func (s *Service) SetSpecialDays(ctx context.Context, specialID int64, days []time.Weekday) error {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return s.rejected(schedule.NewValidationError(nil, schedule.MsgInvalidWeekday))
		}
		if !seen[int(d)] {
			seen[int(d)] = true
			out = append(out, int(d))
		}
	}
	sort.Ints(out)

	if err := s.store.SetSpecialDays(ctx, specialID, out); err != nil {
		return notFound(err)
	}
	s.logger.Info().Int64("special_id", specialID).Ints("days", out).Msg("special days updated")
	return nil
}

func (s *Service) SetSpecialPause(ctx context.Context, specialID int64, paused bool) error {
	if err := s.store.SetSpecialManualPause(ctx, specialID, paused); err != nil {
		return notFound(err)
	}
	s.logger.Info().Int64("special_id", specialID).Bool("paused", paused).Msg("special pause updated")
	return nil
}

// SetSpecialWindow sets the shared special-item window for day.
func (s *Service) SetSpecialWindow(ctx context.Context, day time.Weekday, w schedule.Window) error {
	if day < time.Sunday || day > time.Saturday {
		return s.rejected(schedule.NewValidationError(nil, schedule.MsgInvalidWeekday))
	}
	if err := schedule.ValidateDayWindow(day, w); err != nil {
		return s.rejected(err)
	}
	if err := s.store.UpsertSpecialHour(ctx, model.SpecialHour{
		Day:       int(day),
		StartTime: w.Start.String(),
		EndTime:   w.End.String(),
	}); err != nil {
		return err
	}
	s.logger.Info().Str("day", day.String()).Str("window", w.String()).Msg("special hours updated")
	return nil
}

// SpecialHours returns the shared special-item windows.
func (s *Service) SpecialHours(ctx context.Context) (schedule.SpecialHours, error) {
	rows, err := s.store.ListSpecialHours(ctx)
	if err != nil {
		return nil, err
	}
	return model.SpecialHoursFrom(rows), nil
}
