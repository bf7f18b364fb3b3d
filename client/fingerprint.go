package client

// DefaultUserAgent is shared by the harvesting browser and the replayed POST.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// BrowserProfile describes the browser the reservation request claims to be.
type BrowserProfile struct {
	UserAgent string
	Origin    string // e.g. "https://app.courtreserve.com"
}

// NewBrowserProfile falls back to DefaultUserAgent when userAgent is empty.
func NewBrowserProfile(userAgent, origin string) BrowserProfile {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return BrowserProfile{UserAgent: userAgent, Origin: origin}
}

// Headers returns the header set a Chrome XHR from the booking page sends.
func (p BrowserProfile) Headers() map[string]string {
	return map[string]string{
		"Accept":             "*/*",
		"Accept-Language":    "en-US,en;q=0.9",
		"Cache-Control":      "no-cache",
		"Content-Type":       "application/x-www-form-urlencoded; charset=UTF-8",
		"Origin":             p.Origin,
		"Pragma":             "no-cache",
		"Priority":           "u=1, i",
		"Referer":            p.Origin + "/",
		"Sec-Ch-Ua":          `"Google Chrome";v="129", "Not=A?Brand";v="8", "Chromium";v="129"`,
		"Sec-Ch-Ua-Mobile":   "?0",
		"Sec-Ch-Ua-Platform": `"macOS"`,
		"Sec-Fetch-Dest":     "empty",
		"Sec-Fetch-Mode":     "cors",
		"Sec-Fetch-Site":     "same-site",
		"User-Agent":         p.UserAgent,
		"X-Requested-With":   "XMLHttpRequest",
	}
}
