package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/janstenpickle/docker-api/types"
)

// DefaultHost is the engine endpoint used when none is configured.
const DefaultHost = "unix:///var/run/docker.sock"

// DefaultDialTimeout bounds connection setup.
const DefaultDialTimeout = 30 * time.Second

// Config configures an HTTP transport.
type Config struct {
	// Host is unix://<path>, tcp://<host:port>, http://... or https://...
	Host string
	// APIVersion is prefixed to every path as /v<version>. Empty disables
	// the prefix.
	APIVersion string
	// Headers are sent on every request (e.g. X-Registry-Auth).
	Headers map[string]string
	// DialTimeout bounds connection setup (default 30s).
	DialTimeout time.Duration
	// TLS enables TLS for tcp:// hosts; https:// hosts use it when set.
	TLS *tls.Config
}

// HTTP is a Transport over net/http. There is no overall client timeout;
// streaming calls are bounded by their context.
type HTTP struct {
	base       *url.URL
	apiVersion string
	headers    http.Header
	transport  *http.Transport
	client     *http.Client
}

// NewHTTP creates an HTTP transport for cfg.Host.
func NewHTTP(cfg Config) (*HTTP, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("parse host %q: %w", cfg.Host, err)
	}

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	tr := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: cfg.TLS,
	}

	base := &url.URL{}
	switch u.Scheme {
	case "unix":
		socket := u.Path
		if socket == "" {
			return nil, errors.New("unix host requires a socket path")
		}
		tr.Proxy = nil
		tr.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socket)
		}
		base.Scheme, base.Host = "http", "docker"
	case "tcp":
		if u.Host == "" {
			return nil, fmt.Errorf("tcp host %q has no address", cfg.Host)
		}
		tr.DialContext = dialer.DialContext
		base.Scheme, base.Host = "http", u.Host
		if cfg.TLS != nil {
			base.Scheme = "https"
		}
	case "http", "https":
		tr.DialContext = dialer.DialContext
		base.Scheme, base.Host, base.Path = u.Scheme, u.Host, strings.TrimRight(u.Path, "/")
	default:
		return nil, fmt.Errorf("unsupported host scheme %q", u.Scheme)
	}

	headers := make(http.Header, len(cfg.Headers)+1)
	headers.Set("User-Agent", types.UserAgent)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	return &HTTP{
		base:       base,
		apiVersion: strings.TrimPrefix(cfg.APIVersion, "v"),
		headers:    headers,
		transport:  tr,
		client:     &http.Client{Transport: tr},
	}, nil
}

// URL returns the absolute URL for path and query.
func (h *HTTP) URL(path string, query url.Values) string {
	u := *h.base
	if h.apiVersion != "" {
		u.Path += "/v" + h.apiVersion
	}
	u.Path += "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do issues req.
func (h *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	op := method + " " + req.Path

	hreq, err := http.NewRequestWithContext(ctx, method, h.URL(req.Path, req.Query), req.Body)
	if err != nil {
		return nil, classify(ctx, op, err)
	}
	for k, vs := range h.headers {
		hreq.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range req.Header {
		hreq.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	if req.Chunked && req.Body != nil {
		hreq.ContentLength = -1
		hreq.TransferEncoding = []string{"chunked"}
	}

	resp, err := h.client.Do(hreq)
	if err != nil {
		return nil, classify(ctx, op, err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

// Close drops idle connections.
func (h *HTTP) Close() error {
	h.transport.CloseIdleConnections()
	return nil
}

// Verify HTTP implements Transport.
var _ Transport = (*HTTP)(nil)
