package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// bookingDateSuffix is how the reservation API expects the Date field; only
// the calendar day carries meaning.
const bookingDateSuffix = " 12:00:00 AM"

// ParseWeekday accepts full English weekday names, case-insensitively.
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}

// NextWeekday returns the next date falling on day, strictly after t's date.
// If t is already on day the result is seven days out.
func NextWeekday(t time.Time, day time.Weekday) time.Time {
	days := (int(day) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return t.AddDate(0, 0, days)
}

// NextSaturday is NextWeekday(t, time.Saturday).
func NextSaturday(t time.Time) time.Time {
	return NextWeekday(t, time.Saturday)
}

// CalendarCookieValue renders t as M/D/YYYY and escapes it for the
// InternalCalendarDate cookie. Slashes stay literal.
func CalendarCookieValue(t time.Time) (plain, encoded string) {
	plain = t.Format("1/2/2006")
	parts := strings.Split(plain, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return plain, strings.Join(parts, "/")
}

// BookingDate is the Date field for a reservation made leadDays after now,
// e.g. 2024-05-01 with 8 lead days gives "5/9/24 12:00:00 AM".
func BookingDate(now time.Time, leadDays int) string {
	return now.AddDate(0, 0, leadDays).Format("1/2/06") + bookingDateSuffix
}

// FireTime resolves an HH:MM:SS clock on now's date. Empty clock means now.
func FireTime(now time.Time, clock string) (time.Time, error) {
	if clock == "" {
		return now, nil
	}
	c, err := time.Parse(time.TimeOnly, clock)
	if err != nil {
		return now, fmt.Errorf("invalid fire time %q: %w", clock, err)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), c.Hour(), c.Minute(), c.Second(), 0, now.Location()), nil
}

// Scheduler handles precise timing for request execution.
type Scheduler struct {
	// SpinDuration is the duration before target time to switch from sleeping to busy-waiting.
	// Default: 5ms
	SpinDuration time.Duration
}

// NewScheduler creates a new Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		SpinDuration: 5 * time.Millisecond,
	}
}

// SleepUntil blocks until the target time is reached or ctx is done.
// It sleeps for the bulk of the wait, then busy-waits for the final
// milliseconds. Returns the drift (actual wake time - target time).
func (s *Scheduler) SleepUntil(ctx context.Context, target time.Time) (time.Duration, error) {
	now := time.Now()
	if !now.Before(target) {
		return now.Sub(target), nil
	}

	remaining := target.Sub(now)
	if remaining > s.SpinDuration {
		timer := time.NewTimer(remaining - s.SpinDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	for {
		now = time.Now()
		if !now.Before(target) {
			break
		}
	}

	return now.Sub(target), nil
}

// sleepCtx waits d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
