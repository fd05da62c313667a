package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"backoffice/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRecord_ToWeekly(t *testing.T) {
	t.Run("daily", func(t *testing.T) {
		rec := ScheduleRecord{Enabled: true, Type: "daily", StartTime: "09:00", EndTime: "22:00"}
		got, err := rec.ToWeekly()
		require.NoError(t, err)
		assert.Equal(t, schedule.ModeUniform, got.Mode)
		assert.Equal(t, schedule.Window{Start: 540, End: 1320}, got.UniformWindow)
	})

	t.Run("daily restricted to days", func(t *testing.T) {
		rec := ScheduleRecord{Enabled: true, Type: "daily", StartTime: "18:00", EndTime: "23:00", Days: []int{5, 6}}
		got, err := rec.ToWeekly()
		require.NoError(t, err)
		assert.Equal(t, schedule.ModePerDay, got.Mode)
		assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, got.EnabledDays())
		assert.Equal(t, schedule.Disabled, got.EffectiveWindow(time.Monday).Constraint)
	})

	t.Run("custom", func(t *testing.T) {
		rec := ScheduleRecord{
			Enabled: true,
			Type:    "custom",
			CustomDays: []CustomDayRecord{
				{Day: 1, Enabled: true, StartTime: "07:00", EndTime: "11:00"},
				{Day: 2, Enabled: false},
			},
		}
		got, err := rec.ToWeekly()
		require.NoError(t, err)
		assert.Equal(t, schedule.DaySlot{Enabled: true, Window: schedule.Window{Start: 420, End: 660}}, got.PerDay[time.Monday])
		assert.False(t, got.PerDay[time.Tuesday].Enabled)
	})

	t.Run("bad time is reported per day", func(t *testing.T) {
		rec := ScheduleRecord{
			Enabled:    true,
			Type:       "custom",
			CustomDays: []CustomDayRecord{{Day: 3, Enabled: true, StartTime: "7am", EndTime: "11:00"}},
		}
		_, err := rec.ToWeekly()
		var verr *schedule.ValidationError
		require.True(t, errors.As(err, &verr))
		require.Len(t, verr.Issues, 1)
		assert.Equal(t, "Wednesday: invalid startTime, expected HH:MM", verr.Issues[0].String())
	})

	t.Run("disabled ignores content", func(t *testing.T) {
		got, err := ScheduleRecord{Enabled: false, Type: "custom", StartTime: "junk"}.ToWeekly()
		require.NoError(t, err)
		assert.False(t, got.Enabled)
	})
}

func TestScheduleRecord_WeeklyLenient(t *testing.T) {
	tests := []struct {
		name string
		rec  ScheduleRecord
	}{
		{"missing start time", ScheduleRecord{Enabled: true, Type: "daily", EndTime: "22:00"}},
		{"unknown type", ScheduleRecord{Enabled: true, Type: "weekly", StartTime: "09:00", EndTime: "22:00"}},
		{"no enabled day", ScheduleRecord{Enabled: true, Type: "custom", CustomDays: []CustomDayRecord{{Day: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rec.Weekly()
			assert.False(t, got.Enabled)
			assert.True(t, schedule.IsCategoryOpen(got, time.Monday, schedule.At(3, 0)))
		})
	}
}

func TestFromWeekly_RoundTrip(t *testing.T) {
	original := schedule.WeeklySchedule{
		Enabled: true,
		Mode:    schedule.ModePerDay,
		PerDay: map[time.Weekday]schedule.DaySlot{
			time.Sunday: {Enabled: true, Window: schedule.Window{Start: 600, End: 900}},
			time.Friday: {Enabled: true, Window: schedule.Window{Start: 1320, End: 120}},
			time.Monday: {Enabled: false},
		},
	}

	rec := FromWeekly(original)
	assert.Equal(t, "custom", rec.Type)
	require.Len(t, rec.CustomDays, 3)
	assert.Equal(t, CustomDayRecord{Day: 0, Enabled: true, StartTime: "10:00", EndTime: "15:00"}, rec.CustomDays[0])

	back, err := rec.ToWeekly()
	require.NoError(t, err)
	assert.Equal(t, original, back)
}

func TestScheduleRecord_Normalized(t *testing.T) {
	tests := []struct {
		name string
		in   ScheduleRecord
		want ScheduleRecord
	}{
		{
			name: "daily with days keeps its shape",
			in:   ScheduleRecord{Enabled: true, Type: "daily", StartTime: "9:00", EndTime: "17:00", Days: []int{2, 1, 2}},
			want: ScheduleRecord{Enabled: true, Type: "daily", StartTime: "09:00", EndTime: "17:00", Days: []int{1, 2}},
		},
		{
			name: "disabled keeps its times",
			in:   ScheduleRecord{Enabled: false, Type: "daily", StartTime: "08:00", EndTime: " 7:30"},
			want: ScheduleRecord{Enabled: false, Type: "daily", StartTime: "08:00", EndTime: "07:30"},
		},
		{
			name: "custom days in weekday order",
			in: ScheduleRecord{Enabled: true, Type: "custom", CustomDays: []CustomDayRecord{
				{Day: 5, Enabled: true, StartTime: "22:00", EndTime: "2:00"},
				{Day: 1, Enabled: false},
			}},
			want: ScheduleRecord{Enabled: true, Type: "custom", CustomDays: []CustomDayRecord{
				{Day: 1, Enabled: false},
				{Day: 5, Enabled: true, StartTime: "22:00", EndTime: "02:00"},
			}},
		},
		{
			name: "missing type defaults to daily",
			in:   ScheduleRecord{},
			want: ScheduleRecord{Type: "daily"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalized())
		})
	}
}

func TestScheduleRecord_JSONShape(t *testing.T) {
	raw := `{"enabled":true,"type":"custom","customDays":[{"day":5,"enabled":true,"startTime":"22:00","endTime":"02:00"}]}`
	var rec ScheduleRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	s, err := rec.ToWeekly()
	require.NoError(t, err)
	assert.True(t, schedule.IsCategoryOpen(s, time.Friday, schedule.At(23, 0)))
}

func TestSoldOutRecord(t *testing.T) {
	o := SoldOutRecord{Enabled: true, EndTime: "18:30"}.Override()
	require.NotNil(t, o.ResumeAt)
	assert.Equal(t, schedule.At(18, 30), *o.ResumeAt)

	o = SoldOutRecord{Enabled: true, EndTime: "later"}.Override()
	assert.True(t, o.Active)
	assert.Nil(t, o.ResumeAt)

	today := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	assert.True(t, SoldOutRecord{Enabled: true, SetOn: "2026-05-09"}.SetBefore(today))
	assert.False(t, SoldOutRecord{Enabled: true, SetOn: "2026-05-10"}.SetBefore(today))
	assert.False(t, SoldOutRecord{Enabled: true}.SetBefore(today))
}

func TestSpecialConversions(t *testing.T) {
	item := SpecialItem{Days: []int{1, 3, 9}}
	b := item.Binding()
	assert.True(t, b.Bound(time.Monday))
	assert.True(t, b.Bound(time.Wednesday))
	assert.False(t, b.Bound(time.Sunday))

	hours := SpecialHoursFrom([]SpecialHour{
		{Day: 1, StartTime: "12:00", EndTime: "16:00"},
		{Day: 2, StartTime: "", EndTime: "16:00"},
		{Day: 8, StartTime: "12:00", EndTime: "16:00"},
	})
	assert.Len(t, hours, 1)
	assert.Equal(t, schedule.Window{Start: 720, End: 960}, hours[time.Monday])
}
