package client

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// calendarCookie makes the bookings calendar open on a chosen date. A date
// that already holds one of our reservations cannot be selected again, so
// the harvester points it at a day that is unlikely to have one.
const calendarCookie = "InternalCalendarDate"

var (
	usernameField  = CSS(`input[name="email"]`)
	passwordField  = CSS(`input[name="password"]`)
	loginButton    = XPath(`//button[descendant::*[contains(text(), 'Continue')]]`)
	lastReserveBtn = XPath(`(//a[contains(text(), 'Reserve')])[last()]`)
	reservationFrm = ID("createReservation-Form")
)

// Credentials are the platform login.
type Credentials struct {
	Username string
	Password string
}

// HarvestConfig holds the pages and timings of the login flow.
type HarvestConfig struct {
	LoginURL     string
	BookingsURL  string
	CookieDomain string // e.g. ".courtreserve.com"
	CalendarDay  time.Weekday

	// ElementTimeout bounds each wait for a page element.
	ElementTimeout time.Duration
	// SettleDelay is slept after login and after each navigation.
	SettleDelay time.Duration

	// ScreenshotDir receives a PNG of the page when a harvest fails. Empty
	// disables screenshots.
	ScreenshotDir string
}

// Harvester logs in through a browser and stores the reservation form's
// authorization values.
type Harvester struct {
	cfg   HarvestConfig
	open  BrowserFactory
	store *RecordStore
	fs    afero.Fs
	now   func() time.Time
}

func NewHarvester(cfg HarvestConfig, open BrowserFactory, store *RecordStore, fs afero.Fs) *Harvester {
	if cfg.ElementTimeout <= 0 {
		cfg.ElementTimeout = 10 * time.Second
	}
	return &Harvester{
		cfg:   cfg,
		open:  open,
		store: store,
		fs:    fs,
		now:   time.Now,
	}
}

// Run is Harvest reduced to a success flag.
func (h *Harvester) Run(ctx context.Context, creds Credentials) bool {
	_, err := h.Harvest(ctx, creds)
	return err == nil
}

// Harvest removes any previous record, walks the login flow and saves a new
// record. Every failure leaves no record behind and is marked ErrHarvestFailed.
// The browser is closed on every path.
func (h *Harvester) Harvest(ctx context.Context, creds Credentials) (*AuthorizationRecord, error) {
	removed, err := h.store.Remove()
	if err != nil {
		log.Printf("An error occurred during login: %v", err)
		return nil, errors.Mark(err, ErrHarvestFailed)
	}
	if removed {
		log.Printf("Cleaned up existing %s file", h.store.Path())
	}

	b, err := h.open(ctx)
	if err != nil {
		log.Printf("An error occurred during login: %v", err)
		return nil, errors.Mark(errors.Wrap(err, "open browser"), ErrHarvestFailed)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			log.Printf("Warning: %v", cerr)
		}
	}()

	rec, err := h.harvest(ctx, b, creds)
	if err != nil {
		log.Printf("An error occurred during login: %v", err)
		h.saveScreenshot(b)
		if removed, rerr := h.store.Remove(); rerr != nil {
			log.Printf("Warning: %v", rerr)
		} else if removed {
			log.Printf("Cleaned up %s file after error", h.store.Path())
		}
		return nil, errors.Mark(err, ErrHarvestFailed)
	}
	return rec, nil
}

func (h *Harvester) harvest(ctx context.Context, b Browser, creds Credentials) (*AuthorizationRecord, error) {
	log.Println("Starting reservation process...")

	if err := b.Navigate(h.cfg.LoginURL); err != nil {
		return nil, err
	}
	if err := b.WaitPresent(usernameField, h.cfg.ElementTimeout); err != nil {
		return nil, err
	}
	if err := b.SendKeys(usernameField, creds.Username); err != nil {
		return nil, err
	}
	if err := b.SendKeys(passwordField, creds.Password); err != nil {
		return nil, err
	}
	if err := b.Click(loginButton); err != nil {
		return nil, err
	}
	log.Println("Login submitted")
	if err := sleepCtx(ctx, h.cfg.SettleDelay); err != nil {
		return nil, err
	}

	target := NextWeekday(h.now(), h.cfg.CalendarDay)
	plain, encoded := CalendarCookieValue(target)
	if err := b.SetCookie(calendarCookie, encoded, h.cfg.CookieDomain); err != nil {
		return nil, err
	}
	log.Printf("Set %s cookie to %s (encoded: %s)", calendarCookie, plain, encoded)
	h.logCookies(b)

	if err := b.Navigate(h.cfg.BookingsURL); err != nil {
		return nil, err
	}
	if err := sleepCtx(ctx, h.cfg.SettleDelay); err != nil {
		return nil, err
	}

	if err := b.WaitPresent(lastReserveBtn, h.cfg.ElementTimeout); err != nil {
		return nil, err
	}
	if err := b.Click(lastReserveBtn); err != nil {
		return nil, err
	}
	if err := sleepCtx(ctx, h.cfg.SettleDelay); err != nil {
		return nil, err
	}

	if err := b.WaitPresent(reservationFrm, h.cfg.ElementTimeout); err != nil {
		return nil, err
	}
	formHTML, err := b.OuterHTML(reservationFrm)
	if err != nil {
		return nil, err
	}

	rec, err := ExtractAuthorization(formHTML)
	if err != nil {
		if fields, ferr := HiddenFields(formHTML); ferr == nil {
			log.Printf("Hidden fields on form: %d", len(fields))
			for name := range fields {
				log.Printf(" - %s", name)
			}
		}
		return nil, err
	}
	log.Printf("RequestData: %s", preview(rec.RequestData))
	log.Printf("Verification Token: %s", preview(rec.VerificationToken))

	if err := h.store.Save(rec); err != nil {
		return nil, err
	}
	log.Printf("Auth data written to %s", h.store.Path())

	return &rec, nil
}

func (h *Harvester) logCookies(b Browser) {
	cookies, err := b.Cookies()
	if err != nil {
		log.Printf("Warning: %v", err)
		return
	}
	for _, ck := range cookies {
		if ck.Name == calendarCookie {
			log.Printf(" - %s = %s (Domain: %s)", ck.Name, ck.Value, ck.Domain)
			return
		}
	}
	log.Printf("Warning: %s cookie not visible on current page", calendarCookie)
}

func (h *Harvester) saveScreenshot(b Browser) {
	if h.cfg.ScreenshotDir == "" {
		return
	}
	png, err := b.Screenshot()
	if err != nil {
		log.Printf("Warning: %v", err)
		return
	}
	if err := h.fs.MkdirAll(h.cfg.ScreenshotDir, 0o755); err != nil {
		log.Printf("Warning: %v", err)
		return
	}
	name := filepath.Join(h.cfg.ScreenshotDir, fmt.Sprintf("harvest-failure-%s.png", h.now().Format("20060102-150405")))
	if err := afero.WriteFile(h.fs, name, png, 0o644); err != nil {
		log.Printf("Warning: %v", err)
		return
	}
	log.Printf("Screenshot saved as %s", name)
}

// preview shortens a token for logs.
func preview(s string) string {
	const keep = 12
	if len(s) <= keep {
		return s
	}
	return s[:keep] + fmt.Sprintf("... (%d chars)", len(s))
}
