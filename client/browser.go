package client

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// SelectorKind says how a Selector's Value is matched.
type SelectorKind int

const (
	ByCSS SelectorKind = iota
	ByXPath
	ByID
	ByName
)

// Selector locates one element on the current page.
type Selector struct {
	Kind  SelectorKind
	Value string
}

func CSS(v string) Selector   { return Selector{Kind: ByCSS, Value: v} }
func XPath(v string) Selector { return Selector{Kind: ByXPath, Value: v} }
func ID(v string) Selector    { return Selector{Kind: ByID, Value: v} }
func Name(v string) Selector  { return Selector{Kind: ByName, Value: v} }

func (s Selector) String() string {
	switch s.Kind {
	case ByXPath:
		return "xpath=" + s.Value
	case ByID:
		return "id=" + s.Value
	case ByName:
		return "name=" + s.Value
	default:
		return "css=" + s.Value
	}
}

// Browser is the web automation surface the harvester needs. Implementations
// own one browser session; Close releases it and must be safe to call once
// on every exit path.
type Browser interface {
	// Navigate loads url and waits for its load event, failing with
	// ErrPageTimeout when the page does not finish loading in time.
	Navigate(url string) error
	// WaitPresent blocks until sel is in the DOM, failing with
	// ErrElementNotFound after timeout.
	WaitPresent(sel Selector, timeout time.Duration) error
	SendKeys(sel Selector, text string) error
	Click(sel Selector) error
	SetCookie(name, value, domain string) error
	// Cookies lists the cookies visible to the current page.
	Cookies() ([]*http.Cookie, error)
	OuterHTML(sel Selector) (string, error)
	Screenshot() ([]byte, error)
	Close() error
}

// BrowserFactory opens a new browser session.
type BrowserFactory func(ctx context.Context) (Browser, error)

func elementNotFound(sel Selector, timeout time.Duration) error {
	return errors.Wrapf(ErrElementNotFound, "waited %s for %s", timeout, sel)
}

func pageTimeout(step string, timeout time.Duration) error {
	return errors.Wrapf(ErrPageTimeout, "%s: gave up after %s", step, timeout)
}
