package client

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"
)

// ChromeOptions configures the local Chrome used for harvesting.
type ChromeOptions struct {
	Headless  bool
	ExecPath  string // empty lets chromedp find Chrome
	UserAgent string
	// ProxyServer is passed to --proxy-server, e.g. "socks5://127.0.0.1:1080".
	ProxyServer string
	// ActionTimeout bounds clicks, typing and reads that do not have their
	// own wait.
	ActionTimeout time.Duration
	// PageTimeout bounds a navigation, including the wait for the load
	// event, and cookie reads and writes.
	PageTimeout time.Duration
}

// Chrome is a Browser backed by chromedp.
type Chrome struct {
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	actionTimeout time.Duration
	pageTimeout   time.Duration
	closed        bool
}

// NewChrome starts a browser. The caller must Close it.
func NewChrome(parent context.Context, opts ChromeOptions) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 60 * time.Second
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, errors.Wrap(err, "starting Chrome")
	}

	return &Chrome{
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		actionTimeout: opts.ActionTimeout,
		pageTimeout:   opts.PageTimeout,
	}, nil
}

// ChromeFactory adapts NewChrome to a BrowserFactory.
func ChromeFactory(opts ChromeOptions) BrowserFactory {
	return func(ctx context.Context) (Browser, error) {
		return NewChrome(ctx, opts)
	}
}

func query(sel Selector) (string, []chromedp.QueryOption) {
	switch sel.Kind {
	case ByXPath:
		return sel.Value, []chromedp.QueryOption{chromedp.BySearch}
	case ByID:
		return "[id=" + strconv.Quote(sel.Value) + "]", []chromedp.QueryOption{chromedp.ByQuery}
	case ByName:
		return "[name=" + strconv.Quote(sel.Value) + "]", []chromedp.QueryOption{chromedp.ByQuery}
	default:
		return sel.Value, []chromedp.QueryOption{chromedp.ByQuery}
	}
}

func (c *Chrome) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (c *Chrome) Navigate(url string) error {
	err := c.run(c.pageTimeout, chromedp.Navigate(url))
	if errors.Is(err, context.DeadlineExceeded) {
		return pageTimeout("load "+url, c.pageTimeout)
	}
	return errors.Wrapf(err, "navigate to %s", url)
}

func (c *Chrome) WaitPresent(sel Selector, timeout time.Duration) error {
	q, opts := query(sel)
	err := c.run(timeout, chromedp.WaitReady(q, opts...))
	if errors.Is(err, context.DeadlineExceeded) {
		return elementNotFound(sel, timeout)
	}
	return errors.Wrapf(err, "wait for %s", sel)
}

func (c *Chrome) SendKeys(sel Selector, text string) error {
	q, opts := query(sel)
	err := c.run(c.actionTimeout, chromedp.SendKeys(q, text, opts...))
	if errors.Is(err, context.DeadlineExceeded) {
		return elementNotFound(sel, c.actionTimeout)
	}
	return errors.Wrapf(err, "type into %s", sel)
}

func (c *Chrome) Click(sel Selector) error {
	q, opts := query(sel)
	err := c.run(c.actionTimeout, chromedp.Click(q, opts...))
	if errors.Is(err, context.DeadlineExceeded) {
		return elementNotFound(sel, c.actionTimeout)
	}
	return errors.Wrapf(err, "click %s", sel)
}

func (c *Chrome) SetCookie(name, value, domain string) error {
	err := c.run(c.pageTimeout, network.SetCookie(name, value).WithDomain(domain).WithPath("/"))
	if errors.Is(err, context.DeadlineExceeded) {
		return pageTimeout("set cookie "+name, c.pageTimeout)
	}
	return errors.Wrapf(err, "set cookie %s", name)
}

func (c *Chrome) Cookies() ([]*http.Cookie, error) {
	var raw []*network.Cookie
	err := c.run(c.pageTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, pageTimeout("read cookies", c.pageTimeout)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read cookies")
	}

	cookies := make([]*http.Cookie, 0, len(raw))
	for _, ck := range raw {
		cookies = append(cookies, &http.Cookie{
			Name:   ck.Name,
			Value:  ck.Value,
			Domain: ck.Domain,
			Path:   ck.Path,
		})
	}
	return cookies, nil
}

func (c *Chrome) OuterHTML(sel Selector) (string, error) {
	q, opts := query(sel)
	var html string
	err := c.run(c.actionTimeout, chromedp.OuterHTML(q, &html, opts...))
	if errors.Is(err, context.DeadlineExceeded) {
		return "", elementNotFound(sel, c.actionTimeout)
	}
	return html, errors.Wrapf(err, "read html of %s", sel)
}

func (c *Chrome) Screenshot() ([]byte, error) {
	var buf []byte
	err := c.run(c.actionTimeout, chromedp.FullScreenshot(&buf, 90))
	return buf, errors.Wrap(err, "screenshot")
}

// Close shuts Chrome down and releases the allocator.
func (c *Chrome) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := chromedp.Cancel(c.ctx)
	c.cancelBrowser()
	c.cancelAlloc()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return errors.Wrap(err, "closing Chrome")
}
