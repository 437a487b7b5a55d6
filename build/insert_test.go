package build

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/resource"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestInsertLocal(t *testing.T) {
	dir := t.TempDir()
	conf := writeFile(t, dir, "etc/app.conf", "listen 80\n")
	bin := writeFile(t, dir, "bin/server", "ELF")

	eng := &engine{lines: successLines}
	b := newBuilder(t, eng, nil)

	base := resource.NewImage(nil, "3fd9065eaf02")
	img, err := b.InsertLocal(t.Context(), base, InsertOptions{
		Files: []InsertFile{
			{Local: conf, Dest: "/etc/app/app.conf"},
			{Local: bin, Dest: "/usr/local/bin/server"},
		},
		Build: Options{Tag: "app:patched", Dockerfile: "ignored", Excludes: []string{"*"}},
	}, nil)
	if err != nil {
		t.Fatalf("InsertLocal: %v", err)
	}
	if img.ID() != imageID {
		t.Errorf("image = %q", img.ID())
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	want := "FROM 3fd9065eaf02\nADD app.conf /etc/app/app.conf\nADD server /usr/local/bin/server\n"
	if got := eng.files["Dockerfile"]; got != want {
		t.Errorf("Dockerfile = %q, want %q", got, want)
	}
	if eng.files["app.conf"] != "listen 80\n" || eng.files["server"] != "ELF" {
		t.Errorf("files = %v", eng.files)
	}
	if eng.query["t"] != "app:patched" {
		t.Errorf("tag = %q", eng.query["t"])
	}
	if _, ok := eng.query["dockerfile"]; ok {
		t.Error("dockerfile option should be dropped")
	}
}

func TestInsertLocal_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a/config", "1")
	b2 := writeFile(t, dir, "b/config", "2")
	df := writeFile(t, dir, "Dockerfile", "FROM scratch\n")

	tr := &countingTransport{}
	b, err := New(Config{Transport: tr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := resource.NewImage(tr, "abc")

	tests := []struct {
		name string
		img  *resource.Image
		opts InsertOptions
	}{
		{"no image", nil, InsertOptions{Files: []InsertFile{{Local: a, Dest: "/a"}}}},
		{"no files", base, InsertOptions{}},
		{"missing file", base, InsertOptions{Files: []InsertFile{{Local: filepath.Join(dir, "nope"), Dest: "/x"}}}},
		{"duplicate basename", base, InsertOptions{Files: []InsertFile{{Local: a, Dest: "/a"}, {Local: b2, Dest: "/b"}}}},
		{"dockerfile basename", base, InsertOptions{Files: []InsertFile{{Local: df, Dest: "/df"}}}},
		{"missing destination", base, InsertOptions{Files: []InsertFile{{Local: a}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.InsertLocal(t.Context(), tt.img, tt.opts, nil)
			if !errors.Is(err, apierr.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
	if n := tr.calls.Load(); n != 0 {
		t.Errorf("transport called %d times", n)
	}
}
