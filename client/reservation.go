package client

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// Venue holds the identifiers of the club and the court type to book.
type Venue struct {
	OrgID             string `koanf:"org_id"`
	CustomSchedulerID string `koanf:"custom_scheduler_id"`
	ReservationTypeID string `koanf:"reservation_type_id"`
	CourtType         string `koanf:"court_type"`
	CourtTypeID       string `koanf:"court_type_id"`
	CourtTypeEnum     string `koanf:"court_type_enum"`
	DisclosureName    string `koanf:"disclosure_name"`
	HoldTimeMinutes   string `koanf:"hold_time_minutes"`
	MaxCourts         string `koanf:"max_courts"`
	AppURL            string `koanf:"app_url"` // e.g. "https://app.courtreserve.com"
	APIURL            string `koanf:"api_url"` // e.g. "https://reservations.courtreserve.com"
	CookieDomain      string `koanf:"cookie_domain"`
}

func (v Venue) LoginURL() string {
	return v.AppURL + "/Online/Account/Login/" + v.OrgID + "?isMobileLayout=False"
}

func (v Venue) BookingsURL() string {
	return v.AppURL + "/Online/Reservations/Bookings/" + v.OrgID
}

func (v Venue) CreateReservationURL() string {
	return v.APIURL + "/Online/ReservationsApi/CreateReservation/" + v.OrgID + "?uiCulture=en-US"
}

// Member is the account the court is booked for.
type Member struct {
	MemberID          string `koanf:"member_id"`
	MembershipID      string `koanf:"membership_id"`
	OrgMemberID       string `koanf:"org_member_id"`
	OrgMemberFamilyID string `koanf:"org_member_family_id"`
	FirstName         string `koanf:"first_name"`
	LastName          string `koanf:"last_name"`
	Email             string `koanf:"email"`
	MembershipNumber  string `koanf:"membership_number"`
	PriceToPay        string `koanf:"price_to_pay"`
}

// Slot is the start time ("20:00:00") and length in minutes ("90").
type Slot struct {
	StartTime string `koanf:"start_time"`
	Duration  string `koanf:"duration"`
}

// Schedule captures the venue's booking window.
type Schedule struct {
	// AllowedDay is the only weekday a reservation is attempted.
	AllowedDay string `koanf:"allowed_day"`
	// LeadDays is how far ahead of today the reservation is made.
	LeadDays int `koanf:"lead_days"`
	// CalendarDay is the weekday the harvester points the calendar at.
	CalendarDay string `koanf:"calendar_day"`
	// FireAt optionally holds the POST until this HH:MM:SS on the allowed day.
	FireAt string `koanf:"fire_at"`
}

// Booking is everything needed to build a reservation request.
type Booking struct {
	Venue    Venue    `koanf:"venue"`
	Member   Member   `koanf:"member"`
	Slot     Slot     `koanf:"slot"`
	Schedule Schedule `koanf:"schedule"`
}

// Outcome of a Submit call that reached a decision.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeRejected        Outcome = "rejected"
	OutcomeSkippedWrongDay Outcome = "skipped_wrong_day"
	OutcomeDryRun          Outcome = "dry_run"
)

// Result describes one Submit call.
type Result struct {
	Outcome    Outcome
	TargetDate string
	StatusCode int
	Body       []byte
	Timing     *RequestResult
}

type reservationResponse struct {
	IsValid *bool `json:"isValid"`
}

// Submitter replays a harvested authorization record as one reservation POST.
type Submitter struct {
	client     *Client
	booking    Booking
	profile    BrowserProfile
	allowedDay time.Weekday
	scheduler  *Scheduler
	dryRun     bool
}

func NewSubmitter(c *Client, booking Booking, profile BrowserProfile) (*Submitter, error) {
	day, err := ParseWeekday(booking.Schedule.AllowedDay)
	if err != nil {
		return nil, errors.Wrap(err, "allowed day")
	}
	if _, err := FireTime(time.Now(), booking.Schedule.FireAt); err != nil {
		return nil, err
	}
	return &Submitter{
		client:     c,
		booking:    booking,
		profile:    profile,
		allowedDay: day,
		scheduler:  NewScheduler(),
	}, nil
}

// SetDryRun makes Submit build and log the request without sending it.
func (s *Submitter) SetDryRun(dryRun bool) {
	s.dryRun = dryRun
}

// Submit makes one reservation attempt for now + LeadDays. It never retries.
//
// A wrong weekday is not an error: the result is OutcomeSkippedWrongDay and no
// request is made. Transport failures and non-2xx statuses are ErrTransport,
// an unparseable body is ErrMalformedResponse; both still return the Result
// gathered so far for reporting.
func (s *Submitter) Submit(ctx context.Context, rec AuthorizationRecord, now time.Time) (*Result, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	if now.Weekday() != s.allowedDay {
		log.Printf("Day is %s but allowed day is %s. Sleeping.", now.Weekday(), s.allowedDay)
		return &Result{Outcome: OutcomeSkippedWrongDay}, nil
	}

	date := BookingDate(now, s.booking.Schedule.LeadDays)
	log.Printf("Attempting to book %s", date)
	res := &Result{TargetDate: date}

	form := s.Form(rec, date)
	endpoint := s.booking.Venue.CreateReservationURL()

	if s.dryRun {
		log.Println("DRY RUN: Skipping POST to", endpoint)
		logForm(form)
		res.Outcome = OutcomeDryRun
		return res, nil
	}

	if s.booking.Schedule.FireAt != "" {
		fireAt, err := FireTime(now, s.booking.Schedule.FireAt)
		if err != nil {
			return nil, err
		}
		log.Printf("Holding request until %s", fireAt.Format(time.TimeOnly))
		drift, err := s.scheduler.SleepUntil(ctx, fireAt)
		if err != nil {
			return nil, errors.Wrap(err, "waiting for fire time")
		}
		log.Printf("Woke with drift %d µs", drift.Microseconds())
	}

	timing, err := s.client.ExecuteRequestWithHeaders(ctx, http.MethodPost, endpoint, []byte(form.Encode()), s.profile.Headers())
	res.Timing = timing
	if err != nil {
		return res, errors.Mark(errors.Wrapf(err, "POST %s", endpoint), ErrTransport)
	}
	res.StatusCode = timing.StatusCode
	res.Body = timing.Body
	log.Printf("Status Code: %d", timing.StatusCode)

	if timing.StatusCode < 200 || timing.StatusCode > 299 {
		err := errors.Newf("unexpected status %d: %s", timing.StatusCode, truncate(timing.Body, 300))
		if timing.StatusCode == http.StatusBadRequest || timing.StatusCode == http.StatusForbidden {
			err = errors.WithHint(err, hintStaleToken)
		}
		return res, errors.Mark(err, ErrTransport)
	}

	var body reservationResponse
	if err := json.Unmarshal(timing.Body, &body); err != nil {
		err = errors.Wrapf(err, "body: %s", truncate(timing.Body, 300))
		return res, errors.Mark(err, ErrMalformedResponse)
	}

	if body.IsValid != nil && *body.IsValid {
		log.Println("Success")
		res.Outcome = OutcomeSuccess
		return res, nil
	}
	log.Printf("Response Text: %s", timing.Body)
	res.Outcome = OutcomeRejected
	return res, nil
}

// Form builds the create-reservation form body.
func (s *Submitter) Form(rec AuthorizationRecord, date string) url.Values {
	v := s.booking.Venue
	m := s.booking.Member
	slot := s.booking.Slot

	data := url.Values{}
	data.Set("__RequestVerificationToken", rec.VerificationToken)
	data.Set("Id", v.OrgID)
	data.Set("OrgId", v.OrgID)
	data.Set("MemberId", m.MemberID)
	data.Set("MemberIds", "")
	data.Set("IsConsolidatedScheduler", "True")
	data.Set("HoldTimeForReservation", v.HoldTimeMinutes)
	data.Set("RequirePaymentWhenBookingCourtsOnline", "False")
	data.Set("AllowMemberToPickOtherMembersToPlayWith", "False")
	data.Set("ReservableEntityName", "Court")
	data.Set("IsAllowedToPickStartAndEndTime", "False")
	data.Set("CustomSchedulerId", v.CustomSchedulerID)
	data.Set("IsConsolidated", "True")
	data.Set("IsToday", "False")
	data.Set("IsFromDynamicSlots", "False")
	data.Set("InstructorId", "")
	data.Set("InstructorName", "")
	data.Set("CanSelectCourt", "False")
	data.Set("IsCourtRequired", "False")
	data.Set("CostTypeAllowOpenMatches", "False")
	data.Set("IsMultipleCourtRequired", "False")
	data.Set("ReservationQueueId", "")
	data.Set("ReservationQueueSlotId", "")
	data.Set("RequestData", rec.RequestData)
	data.Set("IsMobileLayout", "False")
	data.Set("Date", date)
	data.Set("SelectedCourtType", v.CourtType)
	data.Set("SelectedCourtTypeId", v.CourtTypeID)
	data.Set("SelectedResourceId", "")
	data.Set("DisclosureName", v.DisclosureName)
	data.Set("IsResourceReservation", "False")
	data.Set("StartTime", slot.StartTime)
	data.Set("CourtTypeEnum", v.CourtTypeEnum)
	data.Set("MembershipId", m.MembershipID)
	data.Set("UseMinTimeByDefault", "False")
	data.Set("IsEligibleForPreauthorization", "False")
	data.Set("MatchMakerSelectedRatingIdsString", "")
	data.Set("DurationType", "")
	data.Set("MaxAllowedCourtsPerReservation", v.MaxCourts)
	data.Set("SelectedResourceName", "")
	data.Set("ReservationTypeId", v.ReservationTypeID)
	data.Set("Duration", slot.Duration)
	data.Set("CourtId", "")
	data.Set("OwnersDropdown_input", "")
	data.Set("OwnersDropdown", "")
	data.Set("SelectedMembers[0].OrgMemberId", m.OrgMemberID)
	data.Set("SelectedMembers[0].MemberId", m.MemberID)
	data.Set("SelectedMembers[0].OrgMemberFamilyId", m.OrgMemberFamilyID)
	data.Set("SelectedMembers[0].FirstName", m.FirstName)
	data.Set("SelectedMembers[0].LastName", m.LastName)
	data.Set("SelectedMembers[0].Email", m.Email)
	data.Set("SelectedMembers[0].MembershipNumber", m.MembershipNumber)
	data.Set("SelectedMembers[0].PaidAmt", "")
	data.Set("SelectedMembers[0].PriceToPay", m.PriceToPay)
	data.Set("SelectedNumberOfGuests", "")
	data.Set("DisclosureAgree", "true")
	return data
}

func logForm(form url.Values) {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	log.Printf("Would have sent %d fields:", len(keys))
	for _, k := range keys {
		v := form.Get(k)
		if k == "RequestData" || k == "__RequestVerificationToken" {
			v = preview(v)
		}
		log.Printf("  %s=%s", k, v)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "...(" + strconv.Itoa(len(b)) + " bytes)"
}
