package resource

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/iox"
	"github.com/janstenpickle/docker-api/stream"
	"github.com/janstenpickle/docker-api/transport"
)

func newClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tr, err := transport.NewHTTP(transport.Config{Host: srv.URL, APIVersion: "1.41"})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	t.Cleanup(iox.CloseFunc(tr))
	return NewClient(tr)
}

func TestImage_ReadAccessors(t *testing.T) {
	var paths []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1.41/images/app:1/json", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = io.WriteString(w, `{"Id":"sha256:abc","Os":"linux"}`)
	})
	mux.HandleFunc("GET /v1.41/images/app:1/history", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = io.WriteString(w, `[{"Id":"sha256:abc","CreatedBy":"/bin/sh -c #(nop) ADD file","Size":42}]`)
	})
	c := newClient(t, mux)
	img := c.Image("app:1")

	doc, err := img.JSON(t.Context())
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if doc["Id"] != "sha256:abc" || doc["Os"] != "linux" {
		t.Errorf("JSON = %v", doc)
	}

	hist, err := img.History(t.Context())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || hist[0].Size != 42 {
		t.Errorf("History = %+v", hist)
	}
	if len(paths) != 2 {
		t.Errorf("paths = %v", paths)
	}
}

func TestImage_NotFound(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"No such image: nope"}`)
	}))

	_, err := c.Image("nope").JSON(t.Context())
	if !errors.Is(err, apierr.ErrClient) {
		t.Fatalf("err = %v, want ErrClient", err)
	}
	if apierr.StatusCode(err) != http.StatusNotFound {
		t.Errorf("status = %d", apierr.StatusCode(err))
	}
	if !strings.Contains(err.Error(), "No such image") {
		t.Errorf("error should carry the message: %v", err)
	}
}

func TestImage_TagAndRemove(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1.41/images/abc/tag", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("repo") != "registry/app" || q.Get("tag") != "v2" || q.Get("force") != "true" {
			t.Errorf("query = %v", q)
		}
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("DELETE /v1.41/images/abc", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("force") != "true" {
			t.Errorf("force not set: %v", r.URL.Query())
		}
		_, _ = io.WriteString(w, `[{"Untagged":"registry/app:v2"},{"Deleted":"sha256:abc"}]`)
	})
	img := newClient(t, mux).Image("abc")

	if err := img.Tag(t.Context(), "registry/app", "v2", true); err != nil {
		t.Fatalf("Tag: %v", err)
	}
	items, err := img.Remove(t.Context(), true)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(items) != 2 || items[1].Deleted != "sha256:abc" {
		t.Errorf("Remove = %+v", items)
	}

	if err := img.Tag(t.Context(), "", "v2", false); !errors.Is(err, apierr.ErrInvalidInput) {
		t.Errorf("empty repo err = %v, want ErrInvalidInput", err)
	}
}

func TestContainer_Lifecycle(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	record := func(status int, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
		}
	}
	mux.HandleFunc("POST /v1.41/containers/create", func(w http.ResponseWriter, r *http.Request) {
		var cfg ContainerConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			t.Errorf("decode: %v", err)
		}
		if cfg.Image != "alpine" || len(cfg.Cmd) != 2 {
			t.Errorf("config = %+v", cfg)
		}
		if r.URL.Query().Get("name") != "web" {
			t.Errorf("name = %q", r.URL.Query().Get("name"))
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"Id":"c1","Warnings":[]}`)
	})
	mux.HandleFunc("POST /v1.41/containers/c1/start", record(http.StatusNoContent, ""))
	mux.HandleFunc("POST /v1.41/containers/c1/stop", record(http.StatusNotModified, ""))
	mux.HandleFunc("GET /v1.41/containers/c1/changes", record(http.StatusOK, `[{"Path":"/tmp/x","Kind":1}]`))
	mux.HandleFunc("POST /v1.41/commit", record(http.StatusCreated, `{"Id":"sha256:def"}`))
	mux.HandleFunc("DELETE /v1.41/containers/c1", record(http.StatusNoContent, ""))

	c := newClient(t, mux)
	ctr, err := c.CreateContainer(t.Context(), "web", ContainerConfig{Image: "alpine", Cmd: []string{"echo", "hi"}})
	if err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	if ctr.ID() != "c1" {
		t.Fatalf("ID = %q", ctr.ID())
	}

	if err := ctr.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := ctr.Stop(t.Context(), 0); err != nil {
		t.Fatalf("Stop (304): %v", err)
	}
	changes, err := ctr.Changes(t.Context())
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != ChangeAdded {
		t.Errorf("Changes = %+v", changes)
	}
	img, err := ctr.Commit(t.Context(), CommitOptions{Repo: "app", Tag: "snap", Changes: []string{"CMD [\"sh\"]"}})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if img.ID() != "sha256:def" {
		t.Errorf("Commit image = %q", img.ID())
	}
	if err := ctr.Remove(t.Context(), true, true); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	want := []string{
		"POST /v1.41/containers/c1/start?",
		"POST /v1.41/containers/c1/stop?",
		"GET /v1.41/containers/c1/changes?",
		"POST /v1.41/commit?changes=CMD+%5B%22sh%22%5D&container=c1&repo=app&tag=snap",
		"DELETE /v1.41/containers/c1?force=true&v=true",
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestCreateContainer_RequiresImage(t *testing.T) {
	c := NewClient(nil)
	if _, err := c.CreateContainer(t.Context(), "", ContainerConfig{}); !errors.Is(err, apierr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestClient_Lists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1.41/images/json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("all") != "" {
			t.Errorf("all should be omitted, got %q", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `[{"Id":"sha256:a","RepoTags":["app:1"],"Size":1024}]`)
	})
	mux.HandleFunc("GET /v1.41/containers/json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("all") != "true" {
			t.Errorf("all = %q, want true", r.URL.Query().Get("all"))
		}
		_, _ = io.WriteString(w, `[{"Id":"c1","Names":["/web"],"State":"exited"}]`)
	})
	c := newClient(t, mux)

	imgs, err := c.Images(t.Context(), false)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if len(imgs) != 1 || imgs[0].RepoTags[0] != "app:1" {
		t.Errorf("Images = %+v", imgs)
	}

	ctrs, err := c.Containers(t.Context(), true)
	if err != nil {
		t.Fatalf("Containers: %v", err)
	}
	if len(ctrs) != 1 || ctrs[0].State != "exited" {
		t.Errorf("Containers = %+v", ctrs)
	}
}

func TestClient_BadJSON(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	}))
	if _, err := c.Images(t.Context(), false); !errors.Is(err, apierr.ErrUnexpectedResponse) {
		t.Errorf("err = %v, want ErrUnexpectedResponse", err)
	}
}

func TestSupportsAPI(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"Version":"24.0.7","ApiVersion":"1.43","MinAPIVersion":"1.12"}`)
	}))

	tests := []struct {
		minimum string
		want    bool
		wantErr error
	}{
		{"1.41", true, nil},
		{"1.43", true, nil},
		{"v1.44", false, nil},
		{"1.100", false, nil},
		{"latest", false, apierr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.minimum, func(t *testing.T) {
			got, err := c.SupportsAPI(t.Context(), tt.minimum)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SupportsAPI: %v", err)
			}
			if got != tt.want {
				t.Errorf("SupportsAPI(%q) = %v, want %v", tt.minimum, got, tt.want)
			}
		})
	}
}

func TestImportImage(t *testing.T) {
	const rootfs = "fake rootfs tarball contents"
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1.41/images/create", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("fromSrc") != "-" || q.Get("repo") != "base" || q.Get("tag") != "1" {
			t.Errorf("query = %v", q)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/tar" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != rootfs {
			t.Errorf("body = %q", body)
		}
		_, _ = io.WriteString(w, `{"status":"Importing","progressDetail":{},"progress":"[==>]"}`+"\n")
		_, _ = io.WriteString(w, `{"status":"sha256:`+strings.Repeat("ab", 32)+`"}`+"\n")
	})
	c := newClient(t, mux)

	rec := &stream.Recorder{}
	img, err := c.ImportImage(t.Context(), strings.NewReader(rootfs), ImportOptions{Repo: "base", Tag: "1"}, rec)
	if err != nil {
		t.Fatalf("ImportImage: %v", err)
	}
	if img.ID() != "sha256:"+strings.Repeat("ab", 32) {
		t.Errorf("ID = %q", img.ID())
	}
	if rec.Len() != 2 {
		t.Errorf("events = %d, want 2", rec.Len())
	}
}

func TestImportImage_ErrorEvent(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, `{"errorDetail":{"message":"archive/tar: invalid tar header"},"error":"archive/tar: invalid tar header"}`)
	}))

	_, err := c.ImportImage(t.Context(), strings.NewReader("garbage"), ImportOptions{}, nil)
	if !errors.Is(err, apierr.ErrBuildFailed) {
		t.Errorf("err = %v, want ErrBuildFailed", err)
	}
}
