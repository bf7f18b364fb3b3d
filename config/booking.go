package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"courtreserve-bot/client"
)

// BookingEnvPrefix marks env vars that override the booking profile, with
// "__" separating levels: BOOKING_SCHEDULE__ALLOWED_DAY -> schedule.allowed_day.
const BookingEnvPrefix = "BOOKING_"

// DefaultBooking returns the venue defaults. Member fields have no default.
func DefaultBooking() client.Booking {
	return client.Booking{
		Venue: client.Venue{
			OrgID:             "12465",
			CustomSchedulerID: "16819",
			ReservationTypeID: "61740",
			CourtType:         "Hard",
			CourtTypeID:       "2",
			CourtTypeEnum:     "2",
			DisclosureName:    "Court Reservations",
			HoldTimeMinutes:   "15",
			MaxCourts:         "1",
			AppURL:            "https://app.courtreserve.com",
			APIURL:            "https://reservations.courtreserve.com",
			CookieDomain:      ".courtreserve.com",
		},
		Slot: client.Slot{
			StartTime: "20:00:00",
			Duration:  "90",
		},
		Schedule: client.Schedule{
			AllowedDay:  "Saturday",
			LeadDays:    8,
			CalendarDay: "Saturday",
		},
	}
}

// LoadBooking layers, in order: DefaultBooking, the yaml file at path (if it
// exists) and BOOKING_ env vars. The result passes ValidateBooking.
func LoadBooking(path string) (client.Booking, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return client.Booking{}, errors.Wrapf(err, "failed loading %s", path)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return client.Booking{}, errors.Wrapf(err, "stat %s", path)
		}
	}

	if err := k.Load(env.Provider(BookingEnvPrefix, ".", func(s string) string {
		if s == "BOOKING_PROFILE" {
			return ""
		}
		s = strings.TrimPrefix(s, BookingEnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return client.Booking{}, errors.Wrap(err, "failed loading booking env")
	}

	b := DefaultBooking()
	if err := k.Unmarshal("", &b); err != nil {
		return client.Booking{}, errors.Wrap(err, "failed to decode booking profile")
	}
	if err := ValidateBooking(b); err != nil {
		return client.Booking{}, err
	}
	return b, nil
}

// ValidateBooking checks venue, slot and schedule. Member details are
// checked separately by ValidateMember since only reserve needs them.
func ValidateBooking(b client.Booking) error {
	if err := requireFields(
		field{"venue.org_id", b.Venue.OrgID},
		field{"venue.app_url", b.Venue.AppURL},
		field{"venue.api_url", b.Venue.APIURL},
		field{"venue.cookie_domain", b.Venue.CookieDomain},
		field{"slot.start_time", b.Slot.StartTime},
		field{"slot.duration", b.Slot.Duration},
	); err != nil {
		return err
	}

	if _, err := client.ParseWeekday(b.Schedule.AllowedDay); err != nil {
		return errors.Wrap(err, "schedule.allowed_day")
	}
	if _, err := client.ParseWeekday(b.Schedule.CalendarDay); err != nil {
		return errors.Wrap(err, "schedule.calendar_day")
	}
	if b.Schedule.LeadDays < 0 {
		return errors.Newf("schedule.lead_days must not be negative, got %d", b.Schedule.LeadDays)
	}
	if b.Schedule.FireAt != "" {
		if _, err := client.FireTime(time.Now(), b.Schedule.FireAt); err != nil {
			return errors.Wrap(err, "schedule.fire_at")
		}
	}
	return nil
}

// ValidateMember checks the member fields the reservation form carries.
func ValidateMember(b client.Booking) error {
	return requireFields(
		field{"member.member_id", b.Member.MemberID},
		field{"member.membership_id", b.Member.MembershipID},
		field{"member.org_member_id", b.Member.OrgMemberID},
		field{"member.first_name", b.Member.FirstName},
		field{"member.last_name", b.Member.LastName},
		field{"member.email", b.Member.Email},
	)
}

type field struct {
	name, value string
}

func requireFields(fields ...field) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return errors.Newf("booking profile is missing %s", strings.Join(missing, ", "))
	}
	return nil
}
