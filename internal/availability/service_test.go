package availability

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Category), args.Error(1)
}

func (m *mockStore) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Category), args.Error(1)
}

func (m *mockStore) SetCategorySchedule(ctx context.Context, id int64, rec model.ScheduleRecord) error {
	return m.Called(ctx, id, rec).Error(0)
}

func (m *mockStore) SetCategoryManualPause(ctx context.Context, id int64, paused bool) error {
	return m.Called(ctx, id, paused).Error(0)
}

func (m *mockStore) SetCategorySoldOut(ctx context.Context, id int64, rec model.SoldOutRecord) error {
	return m.Called(ctx, id, rec).Error(0)
}

func (m *mockStore) ListItems(ctx context.Context) ([]model.MenuItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MenuItem), args.Error(1)
}

func (m *mockStore) GetItem(ctx context.Context, id int64) (*model.MenuItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MenuItem), args.Error(1)
}

func (m *mockStore) ListSpecials(ctx context.Context) ([]model.SpecialItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SpecialItem), args.Error(1)
}

func (m *mockStore) GetSpecial(ctx context.Context, id int64) (*model.SpecialItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SpecialItem), args.Error(1)
}

func (m *mockStore) SetSpecialDays(ctx context.Context, id int64, days []int) error {
	return m.Called(ctx, id, days).Error(0)
}

func (m *mockStore) SetSpecialManualPause(ctx context.Context, id int64, paused bool) error {
	return m.Called(ctx, id, paused).Error(0)
}

func (m *mockStore) ListSpecialHours(ctx context.Context) ([]model.SpecialHour, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SpecialHour), args.Error(1)
}

func (m *mockStore) UpsertSpecialHour(ctx context.Context, h model.SpecialHour) error {
	return m.Called(ctx, h).Error(0)
}

// Sunday 10 May 2026, 14:30 UTC.
var fixedNow = time.Date(2026, 5, 10, 14, 30, 0, 0, time.UTC)

func newTestService(store Store) *Service {
	return NewService(store, time.UTC, zerolog.New(io.Discard), WithClock(func() time.Time { return fixedNow }))
}

func at(day time.Weekday, h, m int) Moment {
	return Moment{Day: day, Time: schedule.At(h, m)}
}

func issueStrings(t *testing.T, err error) []string {
	t.Helper()
	var verr *schedule.ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	out := make([]string, len(verr.Issues))
	for i, is := range verr.Issues {
		out[i] = is.String()
	}
	return out
}

func TestSetScheduleRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("valid record is normalized and stored", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		want := model.ScheduleRecord{Enabled: true, Type: "daily", StartTime: "09:00", EndTime: "22:00"}
		store.On("SetCategorySchedule", ctx, int64(1), want).Return(nil).Once()

		err := svc.SetScheduleRecord(ctx, 1, model.ScheduleRecord{Enabled: true, Type: "daily", StartTime: " 9:00", EndTime: "22:00"})
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("daily record with days is stored as sent", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		want := model.ScheduleRecord{Enabled: true, Type: "daily", StartTime: "09:00", EndTime: "17:00", Days: []int{1, 2}}
		store.On("SetCategorySchedule", ctx, int64(1), want).Return(nil).Once()

		require.NoError(t, svc.SetScheduleRecord(ctx, 1, want))
		store.AssertExpectations(t)
	})

	t.Run("disabled record keeps its times", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		want := model.ScheduleRecord{Enabled: false, Type: "daily", StartTime: "09:00", EndTime: "17:00"}
		store.On("SetCategorySchedule", ctx, int64(1), want).Return(nil).Once()

		require.NoError(t, svc.SetScheduleRecord(ctx, 1, want))
		store.AssertExpectations(t)
	})

	t.Run("rule violations are reported per day and nothing is stored", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)

		err := svc.SetScheduleRecord(ctx, 1, model.ScheduleRecord{
			Enabled: true,
			Type:    "custom",
			CustomDays: []model.CustomDayRecord{
				{Day: 1, Enabled: true, StartTime: "10:00", EndTime: "10:00"},
				{Day: 2, Enabled: true, StartTime: "23:30", EndTime: "23:00"},
			},
		})
		assert.Equal(t, []string{
			"Monday: start and end time cannot be the same",
			"Tuesday: if you want an overnight schedule, ensure at least 1 hour gap",
		}, issueStrings(t, err))
		store.AssertNotCalled(t, "SetCategorySchedule", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown category", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		store.On("SetCategorySchedule", ctx, int64(9), mock.Anything).Return(sql.ErrNoRows).Once()

		err := svc.SetSchedule(ctx, 9, schedule.WeeklySchedule{})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestSetSoldOut(t *testing.T) {
	ctx := context.Background()

	t.Run("resume later today", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		resume := schedule.At(18, 0)
		store.On("SetCategorySoldOut", ctx, int64(1), model.SoldOutRecord{Enabled: true, EndTime: "18:00", SetOn: "2026-05-10"}).Return(nil).Once()

		require.NoError(t, svc.SetSoldOut(ctx, 1, true, &resume))
		store.AssertExpectations(t)
	})

	t.Run("resume time already passed", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		resume := schedule.At(14, 30)

		err := svc.SetSoldOut(ctx, 1, true, &resume)
		assert.Equal(t, []string{schedule.MsgResumeNotInFuture}, issueStrings(t, err))
	})

	t.Run("indefinite", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		store.On("SetCategorySoldOut", ctx, int64(1), model.SoldOutRecord{Enabled: true, SetOn: "2026-05-10"}).Return(nil).Once()

		require.NoError(t, svc.SetSoldOut(ctx, 1, true, nil))
	})

	t.Run("clear", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		resume := schedule.At(1, 0)
		store.On("SetCategorySoldOut", ctx, int64(1), model.SoldOutRecord{}).Return(nil).Once()

		require.NoError(t, svc.SetSoldOut(ctx, 1, false, &resume))
	})
}

func TestSpecialWrites(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	svc := newTestService(store)

	store.On("SetSpecialDays", ctx, int64(4), []int{1, 5}).Return(nil).Once()
	require.NoError(t, svc.SetSpecialDays(ctx, 4, []time.Weekday{time.Friday, time.Monday, time.Friday}))

	err := svc.SetSpecialDays(ctx, 4, []time.Weekday{time.Weekday(7)})
	assert.Equal(t, []string{schedule.MsgInvalidWeekday}, issueStrings(t, err))

	store.On("UpsertSpecialHour", ctx, model.SpecialHour{Day: 5, StartTime: "12:00", EndTime: "16:00"}).Return(nil).Once()
	require.NoError(t, svc.SetSpecialWindow(ctx, time.Friday, schedule.Window{Start: schedule.At(12, 0), End: schedule.At(16, 0)}))

	err = svc.SetSpecialWindow(ctx, time.Friday, schedule.Window{Start: schedule.At(12, 0), End: schedule.At(12, 10)})
	assert.Equal(t, []string{"Friday: must be at least 15 minutes long"}, issueStrings(t, err))

	store.On("SetSpecialManualPause", ctx, int64(4), true).Return(nil).Once()
	require.NoError(t, svc.SetSpecialPause(ctx, 4, true))

	store.AssertExpectations(t)
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	overnight := model.ScheduleRecord{Enabled: true, Type: "daily", StartTime: "22:00", EndTime: "02:00"}

	tests := []struct {
		name string
		cat  model.Category
		at   Moment
		want schedule.State
	}{
		{
			name: "unscheduled is open",
			cat:  model.Category{ID: 1},
			at:   at(time.Sunday, 3, 0),
			want: schedule.State{Open: true, Reason: schedule.ReasonOpen},
		},
		{
			name: "overnight open after midnight",
			cat:  model.Category{ID: 1, Schedule: overnight},
			at:   at(time.Sunday, 1, 59),
			want: schedule.State{Open: true, Reason: schedule.ReasonOpen},
		},
		{
			name: "overnight closed at end",
			cat:  model.Category{ID: 1, Schedule: overnight},
			at:   at(time.Sunday, 2, 0),
			want: schedule.State{Open: false, Reason: schedule.ReasonScheduleLocked},
		},
		{
			name: "manual pause beats schedule",
			cat:  model.Category{ID: 1, Schedule: overnight, ManualPause: true},
			at:   at(time.Sunday, 12, 0),
			want: schedule.State{Open: false, Reason: schedule.ReasonManuallyPaused},
		},
		{
			name: "sold out beats manual pause",
			cat:  model.Category{ID: 1, ManualPause: true, SoldOut: model.SoldOutRecord{Enabled: true, EndTime: "18:00", SetOn: "2026-05-10"}},
			at:   at(time.Sunday, 17, 59),
			want: schedule.State{Open: false, Reason: schedule.ReasonSoldOut},
		},
		{
			name: "expired sold out no longer counts",
			cat:  model.Category{ID: 1, SoldOut: model.SoldOutRecord{Enabled: true, EndTime: "18:00", SetOn: "2026-05-10"}},
			at:   at(time.Sunday, 18, 0),
			want: schedule.State{Open: true, Reason: schedule.ReasonOpen},
		},
		{
			name: "timed sold out from yesterday no longer counts",
			cat:  model.Category{ID: 1, SoldOut: model.SoldOutRecord{Enabled: true, EndTime: "23:00", SetOn: "2026-05-09"}},
			at:   at(time.Sunday, 14, 30),
			want: schedule.State{Open: true, Reason: schedule.ReasonOpen},
		},
		{
			name: "indefinite sold out persists across days",
			cat:  model.Category{ID: 1, SoldOut: model.SoldOutRecord{Enabled: true, SetOn: "2026-05-01"}},
			at:   at(time.Sunday, 14, 30),
			want: schedule.State{Open: false, Reason: schedule.ReasonSoldOut},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			svc := newTestService(store)
			cat := tt.cat
			store.On("GetCategory", ctx, int64(1)).Return(&cat, nil).Once()

			got, err := svc.Evaluate(ctx, 1, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown category", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		store.On("GetCategory", ctx, int64(2)).Return(nil, sql.ErrNoRows).Once()

		_, err := svc.Evaluate(ctx, 2, at(time.Monday, 9, 0))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEvaluateSpecial(t *testing.T) {
	ctx := context.Background()
	hours := []model.SpecialHour{{Day: 5, StartTime: "12:00", EndTime: "16:00"}}

	tests := []struct {
		name    string
		special model.SpecialItem
		at      Moment
		want    schedule.State
	}{
		{"bound day inside window", model.SpecialItem{Days: []int{5}}, at(time.Friday, 12, 0), schedule.State{Open: true, Reason: schedule.ReasonOpen}},
		{"bound day after window", model.SpecialItem{Days: []int{5}}, at(time.Friday, 16, 0), schedule.State{Open: false, Reason: schedule.ReasonScheduleLocked}},
		{"bound day without hours is open all day", model.SpecialItem{Days: []int{2}}, at(time.Tuesday, 3, 0), schedule.State{Open: true, Reason: schedule.ReasonOpen}},
		{"unbound day is closed", model.SpecialItem{Days: []int{5}}, at(time.Monday, 13, 0), schedule.State{Open: false, Reason: schedule.ReasonScheduleLocked}},
		{"paused", model.SpecialItem{Days: []int{5}, ManualPause: true}, at(time.Friday, 13, 0), schedule.State{Open: false, Reason: schedule.ReasonManuallyPaused}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			svc := newTestService(store)
			sp := tt.special
			store.On("GetSpecial", ctx, int64(7)).Return(&sp, nil).Once()
			store.On("ListSpecialHours", ctx).Return(hours, nil).Once()

			got, err := svc.EvaluateSpecial(ctx, 7, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateItem(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	svc := newTestService(store)

	cats := []model.Category{
		{ID: 1, Name: "Breakfast", Schedule: model.ScheduleRecord{Enabled: true, Type: "daily", StartTime: "07:00", EndTime: "11:00"}},
		{ID: 2, Name: "South Indian", ManualPause: true},
	}
	store.On("ListCategories", ctx).Return(cats, nil)
	store.On("GetItem", ctx, int64(10)).Return(&model.MenuItem{ID: 10, Categories: []string{"Breakfast", "South Indian"}}, nil)
	store.On("GetItem", ctx, int64(11)).Return(&model.MenuItem{ID: 11, Categories: []string{"Breakfast", "Unknown"}}, nil)

	lock, err := svc.EvaluateItem(ctx, 10, at(time.Monday, 12, 0))
	require.NoError(t, err)
	assert.True(t, lock.Locked)
	assert.Equal(t, schedule.ScheduleLocked, lock.Kind)
	assert.Equal(t, []string{"Breakfast"}, lock.BlockingCategories)

	lock, err = svc.EvaluateItem(ctx, 10, at(time.Monday, 8, 0))
	require.NoError(t, err)
	assert.False(t, lock.Locked)

	// Unknown categories count as open.
	lock, err = svc.EvaluateItem(ctx, 11, at(time.Monday, 12, 0))
	require.NoError(t, err)
	assert.False(t, lock.Locked)
}

func TestMenuUsesCachedFlags(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	svc := newTestService(store)

	// The schedule says open right now; only the cached flags matter here.
	store.On("ListCategories", ctx).Return([]model.Category{
		{ID: 1, Name: "Breakfast", IsPaused: true},
		{ID: 2, Name: "Drinks", IsPaused: true, ManualPause: true},
		{ID: 3, Name: "Desserts", IsSoldOut: true},
	}, nil)
	store.On("ListItems", ctx).Return([]model.MenuItem{
		{ID: 10, Name: "Idli", Categories: []string{"Breakfast", "Drinks"}},
		{ID: 11, Name: "Kulfi", Categories: []string{"Desserts"}},
		{ID: 12, Name: "Water", Categories: []string{}},
	}, nil)
	store.On("ListSpecials", ctx).Return([]model.SpecialItem{
		{ID: 20, Name: "Biryani", Days: []int{5}, IsPaused: true},
	}, nil)

	menu, err := svc.Menu(ctx)
	require.NoError(t, err)

	require.Len(t, menu.Categories, 3)
	assert.Equal(t, schedule.ReasonScheduleLocked, menu.Categories[0].State.Reason)
	assert.Equal(t, schedule.ReasonManuallyPaused, menu.Categories[1].State.Reason)
	assert.Equal(t, schedule.ReasonSoldOut, menu.Categories[2].State.Reason)

	require.Len(t, menu.Items, 3)
	assert.Equal(t, schedule.ItemLock{Locked: true, Kind: schedule.ScheduleLocked, BlockingCategories: []string{"Breakfast"}}, menu.Items[0].Lock)
	assert.Equal(t, schedule.ItemLock{Locked: true, Kind: schedule.ManuallyPaused, BlockingCategories: []string{"Desserts"}}, menu.Items[1].Lock)
	assert.False(t, menu.Items[2].Lock.Locked)

	require.Len(t, menu.Specials, 1)
	assert.Equal(t, schedule.State{Open: false, Reason: schedule.ReasonScheduleLocked}, menu.Specials[0].State)
}

func TestMomentOf(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	m := MomentOf(time.Date(2026, 5, 9, 20, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Sunday, m.Day)
	assert.Equal(t, schedule.At(1, 30), m.Time)
	assert.Equal(t, "Sunday 01:30", m.String())
}
