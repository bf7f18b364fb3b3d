package client

import (
	"bytes"
	"context"
	stdtls "crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptrace"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/proxy"
)

// RequestResult holds the timing and status of a request
type RequestResult struct {
	StartTime            time.Time     `json:"start_time"`
	DNSStart             time.Duration `json:"dns_start"`
	DNSDone              time.Duration `json:"dns_done"`
	ConnectStart         time.Duration `json:"connect_start"`
	ConnectDone          time.Duration `json:"connect_done"` // TCP Handshake complete
	TLSHandshakeStart    time.Duration `json:"tls_start"`
	TLSHandshakeDone     time.Duration `json:"tls_done"`
	WroteRequest         time.Duration `json:"wrote_request"`
	GotFirstResponseByte time.Duration `json:"ttfb"`
	TotalDuration        time.Duration `json:"total_duration"`
	StatusCode           int           `json:"status_code"`
	Protocol             string        `json:"protocol"`
	ConnectionReused     bool          `json:"connection_reused"`
	Body                 []byte        `json:"-"`
}

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	// ProxyURL is a socks5:// URL; empty means direct.
	ProxyURL string
	// Fingerprint switches TLS to a Chrome-like uTLS handshake.
	Fingerprint bool
}

// Client wraps an http.Client used for the reservation call.
type Client struct {
	client *http.Client
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	jar, _ := cookiejar.New(nil)

	var transport http.RoundTripper
	if opts.Fingerprint {
		transport = newFingerprintedTransport(opts.ProxyURL)
	} else {
		transport = newStandardTransport(opts.ProxyURL)
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			Jar:       jar,
		},
	}
}

func proxyDialer(proxyURL string, fallback *net.Dialer) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	if proxyURL == "" {
		return fallback.DialContext, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, err
	}
	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{
			User:     u.User.Username(),
			Password: password,
		}
	}
	d, err := proxy.SOCKS5("tcp", u.Host, auth, fallback)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := d.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return d.Dial(network, addr)
	}, nil
}

func newDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
}

func newStandardTransport(proxyURL string) http.RoundTripper {
	dialer := newDialer()
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dial, err := proxyDialer(proxyURL, dialer)
			if err != nil {
				return nil, err
			}
			return dial(ctx, network, addr)
		},
		ForceAttemptHTTP2: proxyURL == "",
	}
}

func newFingerprintedTransport(proxyURL string) http.RoundTripper {
	dialer := newDialer()

	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dial, err := proxyDialer(proxyURL, dialer)
			if err != nil {
				return nil, err
			}
			return dial(ctx, network, addr)
		},
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, _ := net.SplitHostPort(addr)

			dial, err := proxyDialer(proxyURL, dialer)
			if err != nil {
				return nil, err
			}
			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			// HelloCustom so ALPN can be pinned to http/1.1; the stdlib
			// transport cannot speak h2 over a non-*tls.Conn.
			uConn := utls.UClient(conn, &utls.Config{
				ServerName: host,
				NextProtos: []string{"http/1.1"},
			}, utls.HelloCustom)

			spec, err := utls.UTLSIdToSpec(utls.HelloChrome_Auto)
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to get utls spec: %w", err)
			}

			for i, ext := range spec.Extensions {
				if alpn, ok := ext.(*utls.ALPNExtension); ok {
					alpn.AlpnProtocols = []string{"http/1.1"}
					spec.Extensions[i] = alpn
				}
			}

			if err := uConn.ApplyPreset(&spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to apply preset: %w", err)
			}

			if err := uConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}

			return uConn, nil
		},
		ForceAttemptHTTP2: false,
	}
}

// Do executes a request with a default user agent.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", DefaultUserAgent)
	}
	return c.client.Do(req)
}

// ExecuteRequestWithHeaders sends one request and records connection
// timings. Transport failures are returned as errors; any HTTP status is a
// result.
func (c *Client) ExecuteRequestWithHeaders(ctx context.Context, method, url string, body []byte, headers map[string]string) (*RequestResult, error) {
	var start time.Time
	var dnsStart, dnsDone, connStart, connDone, tlsStart, tlsDone, wroteReq, firstByte time.Time
	var reused bool

	trace := &httptrace.ClientTrace{
		DNSStart:             func(_ httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:              func(_ httptrace.DNSDoneInfo) { dnsDone = time.Now() },
		ConnectStart:         func(_, _ string) { connStart = time.Now() },
		ConnectDone:          func(network, addr string, err error) { connDone = time.Now() },
		TLSHandshakeStart:    func() { tlsStart = time.Now() },
		TLSHandshakeDone:     func(_ stdtls.ConnectionState, _ error) { tlsDone = time.Now() },
		WroteRequest:         func(_ httptrace.WroteRequestInfo) { wroteReq = time.Now() },
		GotFirstResponseByte: func() { firstByte = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			reused = info.Reused
		},
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start = time.Now()
	resp, err := c.Do(req)
	total := time.Since(start)

	result := &RequestResult{
		StartTime:     start,
		TotalDuration: total,
	}

	since := func(t time.Time) time.Duration {
		if t.IsZero() {
			return 0
		}
		return t.Sub(start)
	}
	result.DNSStart = since(dnsStart)
	result.DNSDone = since(dnsDone)
	result.ConnectStart = since(connStart)
	result.ConnectDone = since(connDone)
	result.TLSHandshakeStart = since(tlsStart)
	result.TLSHandshakeDone = since(tlsDone)
	result.WroteRequest = since(wroteReq)
	result.GotFirstResponseByte = since(firstByte)
	result.ConnectionReused = reused

	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Protocol = resp.Proto

	bodyBytes, err := io.ReadAll(resp.Body)
	result.Body = bodyBytes
	if err != nil {
		return result, fmt.Errorf("read response body: %w", err)
	}

	return result, nil
}
