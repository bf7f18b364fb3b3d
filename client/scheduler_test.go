package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSaturday(t *testing.T) {
	// Sunday 2024-04-28 through Saturday 2024-05-04.
	start := time.Date(2024, 4, 28, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		t.Run(day.Weekday().String(), func(t *testing.T) {
			got := NextSaturday(day)
			assert.Equal(t, time.Saturday, got.Weekday())

			days := int(got.Sub(day).Hours() / 24)
			if day.Weekday() == time.Saturday {
				assert.Equal(t, 7, days)
			} else {
				assert.GreaterOrEqual(t, days, 1)
				assert.LessOrEqual(t, days, 6)
			}
		})
	}
}

func TestNextWeekday(t *testing.T) {
	wed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC), NextWeekday(wed, time.Sunday))
	assert.Equal(t, time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC), NextWeekday(wed, time.Wednesday))
	assert.Equal(t, time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC), NextWeekday(wed, time.Thursday))
}

func TestCalendarCookieValue(t *testing.T) {
	plain, encoded := CalendarCookieValue(time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "5/4/2024", plain)
	assert.Equal(t, "5/4/2024", encoded)

	plain, _ = CalendarCookieValue(time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "12/28/2024", plain)
}

func TestBookingDate(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		lead int
		want string
	}{
		{"eight days ahead", time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC), 8, "5/9/24 12:00:00 AM"},
		{"crosses month", time.Date(2024, 1, 27, 23, 59, 0, 0, time.UTC), 8, "2/4/24 12:00:00 AM"},
		{"crosses year", time.Date(2024, 12, 28, 7, 0, 0, 0, time.UTC), 8, "1/5/25 12:00:00 AM"},
		{"same day", time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC), 0, "3/2/24 12:00:00 AM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BookingDate(tt.now, tt.lead))
		})
	}
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("saturday")
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, d)

	d, err = ParseWeekday(" Monday ")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d)

	_, err = ParseWeekday("Sat")
	assert.Error(t, err)
}

func TestFireTime(t *testing.T) {
	now := time.Date(2024, 5, 4, 6, 59, 0, 0, time.UTC)

	got, err := FireTime(now, "")
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = FireTime(now, "07:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 4, 7, 0, 0, 0, time.UTC), got)

	_, err = FireTime(now, "7am")
	assert.Error(t, err)
}

func TestSleepUntil(t *testing.T) {
	s := NewScheduler()

	t.Run("past target returns immediately", func(t *testing.T) {
		drift, err := s.SleepUntil(context.Background(), time.Now().Add(-time.Second))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, drift, time.Second)
	})

	t.Run("wakes at target", func(t *testing.T) {
		target := time.Now().Add(20 * time.Millisecond)
		drift, err := s.SleepUntil(context.Background(), target)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, drift, time.Duration(0))
		assert.False(t, time.Now().Before(target))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.SleepUntil(ctx, time.Now().Add(time.Hour))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
