package config

import (
	"io/fs"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variables. Credentials are loaded separately so that `reserve`
// runs without them.
// -----------------------------------------------------------------------------

type Config struct {
	AuthFile       string        `envconfig:"AUTH_FILE" default:"auth.json"`
	BookingProfile string        `envconfig:"BOOKING_PROFILE" default:"booking.yaml"`
	HTTP           HTTPConfig
	Browser        BrowserConfig
	RunLog         string `envconfig:"RUN_LOG"`
}

type HTTPConfig struct {
	Timeout        time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	ProxyURL       string        `envconfig:"PROXY_URL"`
	TLSFingerprint bool          `envconfig:"TLS_FINGERPRINT" default:"true"`
	UserAgent      string        `envconfig:"USER_AGENT"`
}

type BrowserConfig struct {
	Headless       bool          `envconfig:"HEADLESS" default:"false"`
	ChromePath     string        `envconfig:"CHROME_PATH"`
	ElementTimeout time.Duration `envconfig:"ELEMENT_TIMEOUT" default:"10s"`
	PageTimeout    time.Duration `envconfig:"PAGE_TIMEOUT" default:"60s"`
	SettleDelay    time.Duration `envconfig:"SETTLE_DELAY" default:"3s"`
	ScreenshotDir  string        `envconfig:"SCREENSHOT_DIR"`
}

type Credentials struct {
	Username string `envconfig:"COURTRESERVE_USERNAME"`
	Password string `envconfig:"COURTRESERVE_PASSWORD"`
}

var ErrMissingCredentials = errors.WithHint(
	errors.New("COURTRESERVE_USERNAME and COURTRESERVE_PASSWORD must both be set"),
	"Please set COURTRESERVE_USERNAME and COURTRESERVE_PASSWORD in your .env file",
)

// LoadEnvFile loads a .env file into the process environment. A missing file
// is not an error; variables already set win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "failed to load %s", path)
	}
	return nil
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to process env config")
	}
	if cfg.HTTP.Timeout <= 0 {
		return Config{}, errors.Newf("HTTP_TIMEOUT must be positive, got %s", cfg.HTTP.Timeout)
	}
	if cfg.Browser.ElementTimeout <= 0 {
		return Config{}, errors.Newf("ELEMENT_TIMEOUT must be positive, got %s", cfg.Browser.ElementTimeout)
	}
	if cfg.Browser.PageTimeout <= 0 {
		return Config{}, errors.Newf("PAGE_TIMEOUT must be positive, got %s", cfg.Browser.PageTimeout)
	}
	return cfg, nil
}

// LoadCredentials requires both COURTRESERVE_USERNAME and COURTRESERVE_PASSWORD.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	if err := envconfig.Process("", &c); err != nil {
		return Credentials{}, errors.Wrap(err, "failed to process env config")
	}
	if c.Username == "" || c.Password == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return c, nil
}
