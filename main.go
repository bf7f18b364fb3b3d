package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"courtreserve-bot/client"
	"courtreserve-bot/config"
)

const (
	exitOK            = 0
	exitFailure       = 1
	exitMissingRecord = 2
	exitUsage         = 64
)

// now is swapped in tests.
var now = time.Now

const usage = `usage: courtreserve-bot [-env-file .env] <command> [flags]

commands:
  login     log in through Chrome and save the reservation token to AUTH_FILE
  reserve   book the configured court using the saved token
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, afero.NewOsFs())
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer, fs afero.Fs) int {
	global := flag.NewFlagSet("courtreserve-bot", flag.ContinueOnError)
	global.SetOutput(stdout)
	envFile := global.String("env-file", ".env", "dotenv file to load before reading the environment")
	global.Usage = func() { fmt.Fprint(stdout, usage) }
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Printf("Error: %v", err)
		return exitFailure
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "login":
		return runLogin(ctx, rest, stdout, fs)
	case "reserve":
		return runReserve(ctx, rest, stdout, fs)
	default:
		fmt.Fprintf(stdout, "unknown command %q\n\n", cmd)
		global.Usage()
		return exitUsage
	}
}

func loadSettings() (config.Config, client.Booking, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, client.Booking{}, err
	}
	booking, err := config.LoadBooking(cfg.BookingProfile)
	if err != nil {
		return config.Config{}, client.Booking{}, err
	}
	return cfg, booking, nil
}

func networkLabel(cfg config.Config) string {
	if cfg.HTTP.ProxyURL != "" {
		return "SOCKS5 proxy"
	}
	return "DIRECT (no proxy)"
}

func finish(stdout io.Writer, fs afero.Fs, cfg config.Config, entry client.LogEntry) {
	client.PrintExecutionLog(stdout, entry)
	if cfg.RunLog != "" {
		if err := client.WriteStructuredLog(fs, entry, cfg.RunLog); err != nil {
			log.Printf("Warning: failed to write run log: %v", err)
		}
	}
}

func runLogin(ctx context.Context, args []string, stdout io.Writer, fs afero.Fs) int {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	flags.SetOutput(stdout)
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	cfg, booking, err := loadSettings()
	if err != nil {
		log.Printf("Error: %v", err)
		return exitFailure
	}

	store := client.NewRecordStore(fs, cfg.AuthFile)
	if removed, err := store.Remove(); err != nil {
		log.Printf("Error: %v", err)
		return exitFailure
	} else if removed {
		log.Printf("Cleaned up existing %s file", cfg.AuthFile)
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		log.Printf("Error: %s", client.Hint(err))
		return exitFailure
	}

	calendarDay, _ := client.ParseWeekday(booking.Schedule.CalendarDay)
	profile := client.NewBrowserProfile(cfg.HTTP.UserAgent, booking.Venue.AppURL)
	harvester := client.NewHarvester(client.HarvestConfig{
		LoginURL:       booking.Venue.LoginURL(),
		BookingsURL:    booking.Venue.BookingsURL(),
		CookieDomain:   booking.Venue.CookieDomain,
		CalendarDay:    calendarDay,
		ElementTimeout: cfg.Browser.ElementTimeout,
		SettleDelay:    cfg.Browser.SettleDelay,
		ScreenshotDir:  cfg.Browser.ScreenshotDir,
	}, client.ChromeFactory(client.ChromeOptions{
		Headless:      cfg.Browser.Headless,
		ExecPath:      cfg.Browser.ChromePath,
		UserAgent:     profile.UserAgent,
		ProxyServer:   cfg.HTTP.ProxyURL,
		ActionTimeout: cfg.Browser.ElementTimeout,
		PageTimeout:   cfg.Browser.PageTimeout,
	}), store, fs)

	entry := client.NewLogEntry("login")
	entry.TargetSite = booking.Venue.AppURL
	entry.ExecutionMode = executionMode(cfg.Browser.Headless)
	entry.NetworkEnv = networkLabel(cfg)

	if _, err := harvester.Harvest(ctx, client.Credentials{Username: creds.Username, Password: creds.Password}); err != nil {
		entry.Result = client.ResultFailed
		entry.Detail = err.Error()
		entry.Hint = client.Hint(err)
		finish(stdout, fs, cfg, entry)
		return exitFailure
	}

	entry.Result = client.ResultSuccess
	entry.Detail = "authorization record written to " + cfg.AuthFile
	finish(stdout, fs, cfg, entry)
	return exitOK
}

func executionMode(headless bool) string {
	if headless {
		return "headless Chrome"
	}
	return "Chrome (windowed)"
}

func runReserve(ctx context.Context, args []string, stdout io.Writer, fs afero.Fs) int {
	flags := flag.NewFlagSet("reserve", flag.ContinueOnError)
	flags.SetOutput(stdout)
	dryRun := flags.Bool("dry-run", false, "build and log the request without sending it")
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	cfg, booking, err := loadSettings()
	if err != nil {
		log.Printf("Error: %v", err)
		return exitFailure
	}

	store := client.NewRecordStore(fs, cfg.AuthFile)
	rec, err := store.Load()
	if err != nil {
		log.Printf("Error: %v", err)
		if hint := client.Hint(err); hint != "" {
			log.Printf("Hint: %s", hint)
		}
		if errors.Is(err, client.ErrMissingCredentials) || errors.Is(err, client.ErrInvalidRecord) {
			return exitMissingRecord
		}
		return exitFailure
	}

	t := now()
	if age, err := store.Age(t); err == nil {
		log.Printf("Using %s written %s ago", cfg.AuthFile, age.Round(time.Second))
	}

	if err := config.ValidateMember(booking); err != nil {
		log.Printf("Error: %v", err)
		return exitFailure
	}

	httpClient := client.NewClient(client.Options{
		Timeout:     cfg.HTTP.Timeout,
		ProxyURL:    cfg.HTTP.ProxyURL,
		Fingerprint: cfg.HTTP.TLSFingerprint,
	})
	submitter, err := client.NewSubmitter(httpClient, booking, client.NewBrowserProfile(cfg.HTTP.UserAgent, booking.Venue.AppURL))
	if err != nil {
		log.Printf("Error: %v", err)
		return exitFailure
	}
	submitter.SetDryRun(*dryRun)

	entry := client.NewLogEntry("reserve")
	entry.TargetSite = booking.Venue.CreateReservationURL()
	entry.ExecutionMode = "live"
	if *dryRun {
		entry.ExecutionMode = "dry run"
	}
	entry.NetworkEnv = networkLabel(cfg)
	entry.Today = t.Format("Monday 2006-01-02")
	entry.AllowedDay = booking.Schedule.AllowedDay
	entry.Slot = fmt.Sprintf("%s for %s min", booking.Slot.StartTime, booking.Slot.Duration)

	res, err := submitter.Submit(ctx, rec, t)
	if res != nil {
		entry.TargetDate = res.TargetDate
		entry.ApplyTiming(res.Timing)
	}
	if err != nil {
		entry.Result = client.ResultFailed
		entry.Detail = err.Error()
		entry.Hint = client.Hint(err)
		finish(stdout, fs, cfg, entry)
		return exitFailure
	}

	switch res.Outcome {
	case client.OutcomeSuccess:
		entry.Result = client.ResultSuccess
	case client.OutcomeRejected:
		entry.Result = client.ResultRejected
		entry.Detail = string(res.Body)
	case client.OutcomeSkippedWrongDay:
		entry.Result = client.ResultSkipped
		entry.Detail = fmt.Sprintf("today is %s, reservations are only attempted on %s", t.Weekday(), booking.Schedule.AllowedDay)
	case client.OutcomeDryRun:
		entry.Result = client.ResultDryRun
	}
	finish(stdout, fs, cfg, entry)

	if res.Outcome == client.OutcomeRejected {
		return exitFailure
	}
	return exitOK
}
