package catalog

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Transport hands out one HTTP session per query execution.
type Transport interface {
	Open(ctx context.Context) (Session, error)
}

// Session issues the requests of a single job and is released with Close.
type Session interface {
	Do(req *http.Request) (*http.Response, error)
	Close() error
}

// HTTPTransport opens sessions over HTTP(S), optionally tunnelled through a
// forward proxy.
type HTTPTransport struct {
	proxy   *url.URL
	timeout time.Duration
}

// NewHTTPTransport validates proxyAddr ("host:port", empty for a direct
// connection) and returns a transport that gives up on a request when the
// response headers do not arrive within timeout. Zero waits indefinitely.
func NewHTTPTransport(proxyAddr string, timeout time.Duration) (*HTTPTransport, error) {
	t := &HTTPTransport{timeout: timeout}
	if proxyAddr == "" {
		return t, nil
	}

	u, err := ParseProxy(proxyAddr)
	if err != nil {
		return nil, err
	}
	t.proxy = u
	return t, nil
}

// ParseProxy turns "host:port" into a proxy URL.
func ParseProxy(addr string) (*url.URL, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", addr, err)
	}
	if host == "" {
		return nil, fmt.Errorf("invalid proxy %q: missing host", addr)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return nil, fmt.Errorf("invalid proxy %q: bad port", addr)
	}
	return &url.URL{Scheme: "http", Host: net.JoinHostPort(host, port)}, nil
}

// Proxy returns the configured proxy URL, or nil.
func (t *HTTPTransport) Proxy() *url.URL {
	return t.proxy
}

// Open creates a session with its own connection pool so that nothing is
// shared between concurrent executions.
func (t *HTTPTransport) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		// Result tables can take long to stream; only the wait for
		// response headers is bounded.
		ResponseHeaderTimeout: t.timeout,
	}
	if t.proxy != nil {
		rt.Proxy = http.ProxyURL(t.proxy)
	}

	client := &http.Client{
		Transport: rt,
		// The submit step must see the redirect itself to learn the job URL.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &httpSession{client: client, transport: rt}, nil
}

type httpSession struct {
	client    *http.Client
	transport *http.Transport
}

func (s *httpSession) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

func (s *httpSession) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}
