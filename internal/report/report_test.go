package report

import (
	"bytes"
	"testing"
	"time"

	"backoffice/internal/availability"
	"backoffice/internal/model"
	"backoffice/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWrite(t *testing.T) {
	snap := Snapshot{
		GeneratedAt: time.Date(2026, 5, 8, 12, 0, 0, 0, time.UTC),
		Categories: []model.Category{
			{ID: 1, Name: "Breakfast", IsPaused: true, Schedule: model.ScheduleRecord{Enabled: true, Type: "daily", StartTime: "07:00", EndTime: "11:00"}},
			{ID: 2, Name: "Drinks", IsSoldOut: true, SoldOut: model.SoldOutRecord{Enabled: true}},
		},
		Menu: &availability.Menu{
			Categories: []availability.CategoryView{
				{ID: 1, Name: "Breakfast", State: schedule.State{Open: false, Reason: schedule.ReasonScheduleLocked}},
				{ID: 2, Name: "Drinks", State: schedule.State{Open: false, Reason: schedule.ReasonSoldOut}},
			},
			Items: []availability.ItemView{
				{ID: 10, Name: "Idli", Categories: []string{"Breakfast"}, Lock: schedule.ItemLock{Locked: true, Kind: schedule.ScheduleLocked, BlockingCategories: []string{"Breakfast"}}},
			},
			Specials: []availability.SpecialView{
				{ID: 20, Name: "Biryani", Days: []int{5}, State: schedule.State{Open: true, Reason: schedule.ReasonOpen}},
			},
		},
		SpecialHours: schedule.SpecialHours{time.Friday: {Start: schedule.At(12, 0), End: schedule.At(16, 0)}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, snap))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Categories", "Items", "Specials", "Special hours"}, f.GetSheetList())

	rows, err := f.GetRows("Categories")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, categoryColumns, rows[0])
	assert.Equal(t, []string{"1", "Breakfast", "daily 07:00-11:00", "no", "no", "", "no", "schedule_locked"}, rows[1])
	assert.Equal(t, "until cleared", rows[2][5])
	assert.Equal(t, "sold_out", rows[2][7])

	rows, err = f.GetRows("Items")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"10", "Idli", "Breakfast", "yes", "schedule_locked", "Breakfast"}, rows[1])

	rows, err = f.GetRows("Special hours")
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, []string{"Friday", "12:00-16:00"}, rows[6])
	assert.Equal(t, []string{"Sunday", "all day"}, rows[1])
}

func TestDescribeSchedule(t *testing.T) {
	tests := []struct {
		name string
		rec  model.ScheduleRecord
		want string
	}{
		{"disabled", model.ScheduleRecord{}, "always open"},
		{"daily", model.ScheduleRecord{Enabled: true, Type: "daily", StartTime: "09:00", EndTime: "22:00"}, "daily 09:00-22:00"},
		{"custom", model.ScheduleRecord{Enabled: true, Type: "custom", CustomDays: []model.CustomDayRecord{
			{Day: 6, Enabled: true, StartTime: "22:00", EndTime: "03:00"},
			{Day: 1, Enabled: true, StartTime: "07:00", EndTime: "11:00"},
			{Day: 2, Enabled: false},
		}}, "Mon 07:00-11:00; Sat 22:00-03:00"},
		{"malformed", model.ScheduleRecord{Enabled: true, Type: "daily", StartTime: "soon"}, "always open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeSchedule(tt.rec))
		})
	}
}
