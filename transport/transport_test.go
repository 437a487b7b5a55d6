package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/iox"
	"github.com/janstenpickle/docker-api/types"
)

func newTestHTTP(t *testing.T, srv *httptest.Server, headers map[string]string) *HTTP {
	t.Helper()
	h, err := NewHTTP(Config{Host: srv.URL, APIVersion: "1.41", Headers: headers})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	t.Cleanup(iox.CloseFunc(h))
	return h
}

func TestNewHTTP_Hosts(t *testing.T) {
	tests := []struct {
		host    string
		wantURL string
		wantErr bool
	}{
		{"unix:///var/run/docker.sock", "http://docker/v1.41/info", false},
		{"tcp://10.0.0.1:2375", "http://10.0.0.1:2375/v1.41/info", false},
		{"http://engine.local:2375/", "http://engine.local:2375/v1.41/info", false},
		{"https://engine.local/prefix", "https://engine.local/prefix/v1.41/info", false},
		{"", "http://docker/v1.41/info", false},
		{"unix://", "", true},
		{"tcp://", "", true},
		{"ftp://x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			h, err := NewHTTP(Config{Host: tt.host, APIVersion: "v1.41"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHTTP: %v", err)
			}
			if got := h.URL("/info", nil); got != tt.wantURL {
				t.Errorf("URL = %q, want %q", got, tt.wantURL)
			}
		})
	}
}

func TestHTTP_URLWithoutVersion(t *testing.T) {
	h, err := NewHTTP(Config{Host: "tcp://127.0.0.1:2375"})
	if err != nil {
		t.Fatal(err)
	}
	got := h.URL("images/json", url.Values{"all": {"1"}})
	if got != "http://127.0.0.1:2375/images/json?all=1" {
		t.Errorf("URL = %q", got)
	}
}

func TestHTTP_DoSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.41/images/json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("all") != "1" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		if got := r.Header.Get("User-Agent"); got != types.UserAgent {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.Header.Get("X-Registry-Auth"); got != "token" {
			t.Errorf("X-Registry-Auth = %q", got)
		}
		if got := r.Header.Get("X-Request"); got != "per-call" {
			t.Errorf("X-Request = %q", got)
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	h := newTestHTTP(t, srv, map[string]string{"X-Registry-Auth": "token"})
	resp, err := h.Do(t.Context(), &Request{
		Path:   "/images/json",
		Query:  url.Values{"all": {"1"}},
		Header: http.Header{"X-Request": {"per-call"}},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	var out []any
	if err := DecodeJSON("images", resp, &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

func TestHTTP_ChunkedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != -1 {
			t.Errorf("ContentLength = %d, want -1", r.ContentLength)
		}
		if len(r.TransferEncoding) != 1 || r.TransferEncoding[0] != "chunked" {
			t.Errorf("TransferEncoding = %v, want [chunked]", r.TransferEncoding)
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	h := newTestHTTP(t, srv, nil)
	resp, err := h.Do(t.Context(), &Request{
		Method:  http.MethodPost,
		Path:    "/build",
		Body:    strings.NewReader("payload"),
		Chunked: true,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer iox.DiscardClose(resp.Body)
	got, _ := io.ReadAll(resp.Body)
	if string(got) != "payload" {
		t.Errorf("echo = %q", got)
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		wantKind error
		wantBody string
	}{
		{"ok", 200, "", nil, ""},
		{"no content", 204, "", nil, ""},
		{"engine message", 404, `{"message":"No such image: nope"}`, apierr.ErrClient, "No such image: nope"},
		{"plain body", 409, "conflict", apierr.ErrClient, "conflict"},
		{"server", 500, `{"message":"boom"}`, apierr.ErrServer, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &Response{StatusCode: tt.code, Body: io.NopCloser(strings.NewReader(tt.body))}
			err := CheckStatus("image json", resp)
			if tt.wantKind == nil {
				if err != nil {
					t.Fatalf("CheckStatus: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("err = %v, want %v", err, tt.wantKind)
			}
			var ae *apierr.Error
			if !errors.As(err, &ae) {
				t.Fatalf("err is %T", err)
			}
			if ae.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", ae.Body, tt.wantBody)
			}
			if ae.StatusCode != tt.code {
				t.Errorf("StatusCode = %d, want %d", ae.StatusCode, tt.code)
			}
		})
	}
}

func TestDecodeJSON_BadBody(t *testing.T) {
	resp := &Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("not json"))}
	var out map[string]any
	err := DecodeJSON("version", resp, &out)
	if !errors.Is(err, apierr.ErrUnexpectedResponse) {
		t.Errorf("err = %v, want ErrUnexpectedResponse", err)
	}
}

func TestHTTP_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	h := newTestHTTP(t, srv, nil)
	srv.Close()

	_, err := Get(t.Context(), h, "/version", nil)
	if !errors.Is(err, apierr.ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
	if !apierr.IsRetryable(err) {
		t.Error("transport errors should be retryable")
	}
}

func TestHTTP_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	h := newTestHTTP(t, srv, nil)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := Get(ctx, h, "/version", nil)
	if !errors.Is(err, apierr.ErrCanceled) {
		t.Errorf("err = %v, want ErrCanceled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled in chain", err)
	}
}

func TestHTTP_UnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "dapi")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "engine.sock")

	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ApiVersion":"1.41"}`)
	})}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	h, err := NewHTTP(Config{Host: "unix://" + socket, APIVersion: "1.41"})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	defer iox.DiscardClose(h)

	resp, err := Get(t.Context(), h, "/version", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var v struct{ ApiVersion string }
	if err := DecodeJSON("version", resp, &v); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if v.ApiVersion != "1.41" {
		t.Errorf("ApiVersion = %q", v.ApiVersion)
	}
}
