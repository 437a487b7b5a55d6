package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"

	"github.com/janstenpickle/docker-api/apierr"
)

// readEntries drains a tar stream into path → content.
func readEntries(t *testing.T, r io.Reader) (map[string][]byte, []*tar.Header) {
	t.Helper()
	tr := tar.NewReader(r)
	got := make(map[string][]byte)
	var headers []*tar.Header
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return got, headers
		}
		if err != nil {
			t.Fatalf("tar Next: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("tar read %s: %v", hdr.Name, err)
		}
		got[hdr.Name] = data
		headers = append(headers, hdr)
	}
}

func TestFromFiles_RoundTrip(t *testing.T) {
	files := map[string][]byte{
		"Dockerfile":         []byte("FROM busybox\nADD app.sh /app.sh\n"),
		"app.sh":             []byte("#!/bin/sh\necho hi\n"),
		"nested/deep/file":   bytes.Repeat([]byte{0xff, 0x00}, 4096),
		"empty":              {},
		"/leading/slash.txt": []byte("x"),
	}

	a, err := FromFiles(files)
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	defer a.Close()

	got, headers := readEntries(t, a)

	want := map[string][]byte{
		"Dockerfile":        files["Dockerfile"],
		"app.sh":            files["app.sh"],
		"nested/deep/file":  files["nested/deep/file"],
		"empty":             {},
		"leading/slash.txt": []byte("x"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for p, content := range want {
		if !bytes.Equal(got[p], content) {
			t.Errorf("entry %q content mismatch", p)
		}
	}

	for i, hdr := range headers {
		if i > 0 && headers[i-1].Name >= hdr.Name {
			t.Errorf("entries not sorted: %q before %q", headers[i-1].Name, hdr.Name)
		}
		if hdr.Mode != FileMode {
			t.Errorf("%s: mode = %o, want %o", hdr.Name, hdr.Mode, FileMode)
		}
		if hdr.Uid != 0 || hdr.Gid != 0 {
			t.Errorf("%s: uid/gid = %d/%d, want 0/0", hdr.Name, hdr.Uid, hdr.Gid)
		}
		if !hdr.ModTime.Equal(FixedModTime) {
			t.Errorf("%s: modtime = %v, want %v", hdr.Name, hdr.ModTime, FixedModTime)
		}
		if hdr.Typeflag != tar.TypeReg {
			t.Errorf("%s: typeflag = %v, want regular", hdr.Name, hdr.Typeflag)
		}
	}
}

func TestFromFiles_Deterministic(t *testing.T) {
	files := map[string][]byte{
		"b": []byte("second"),
		"a": []byte("first"),
		"c": []byte("third"),
	}

	read := func() []byte {
		a, err := FromFiles(files)
		if err != nil {
			t.Fatalf("FromFiles: %v", err)
		}
		defer a.Close()
		data, err := io.ReadAll(a)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		return data
	}

	first, second := read(), read()
	if !bytes.Equal(first, second) {
		t.Error("identical inputs produced different archives")
	}
}

func TestFromFiles_InvalidPaths(t *testing.T) {
	tests := []struct {
		name  string
		files map[string][]byte
	}{
		{"empty path", map[string][]byte{"": nil}},
		{"only slashes", map[string][]byte{"///": nil}},
		{"parent segment", map[string][]byte{"../etc/passwd": nil}},
		{"inner parent segment", map[string][]byte{"a/../../b": nil}},
		{"duplicate after normalization", map[string][]byte{"a/b": nil, "/a/b": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := FromFiles(tt.files)
			if err == nil {
				a.Close()
				t.Fatal("expected error")
			}
			if !errors.Is(err, apierr.ErrInvalidInput) {
				t.Errorf("errors.Is(err, ErrInvalidInput) = false: %v", err)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Dockerfile", "Dockerfile"},
		{"/etc/app.conf", "etc/app.conf"},
		{"a//b/./c", "a/b/c"},
		{`dir\file`, "dir/file"},
	}
	for _, tt := range tests {
		got, err := NormalizePath(tt.in)
		if err != nil {
			t.Errorf("NormalizePath(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWithBlockSize_Bounds(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{"zero keeps default", 0, DefaultBlockSize},
		{"negative keeps default", -1, DefaultBlockSize},
		{"custom", 4096, 4096},
		{"capped", 64 << 30, MaxBlockSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := FromFiles(map[string][]byte{"f": []byte("x")}, WithBlockSize(tt.size))
			if err != nil {
				t.Fatalf("FromFiles: %v", err)
			}
			defer a.Close()
			if a.BlockSize() != tt.want {
				t.Errorf("BlockSize = %d, want %d", a.BlockSize(), tt.want)
			}
		})
	}
}

func TestNextBlock_FixedSize(t *testing.T) {
	// 512 header + 3584 content + 1024 trailer = 5 blocks of 1024.
	a, err := FromFiles(map[string][]byte{"f": bytes.Repeat([]byte("a"), 3584)}, WithBlockSize(1024))
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	defer a.Close()

	if a.BlockSize() != 1024 {
		t.Fatalf("BlockSize = %d, want 1024", a.BlockSize())
	}

	var blocks int
	for {
		b, err := a.NextBlock()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextBlock: %v", err)
		}
		if len(b) != 1024 {
			t.Errorf("block %d: len = %d, want 1024", blocks, len(b))
		}
		blocks++
	}
	if blocks != 5 {
		t.Errorf("blocks = %d, want 5", blocks)
	}
	if s := a.Stats(); s.Blocks != 5 || s.Bytes != 5120 {
		t.Errorf("Stats = %+v, want 5 blocks / 5120 bytes", s)
	}

	// EOF is sticky.
	if _, err := a.NextBlock(); !errors.Is(err, io.EOF) {
		t.Errorf("NextBlock after EOF = %v, want io.EOF", err)
	}
}

func TestNextBlock_ShortLastBlock(t *testing.T) {
	a, err := FromFiles(map[string][]byte{"f": []byte("hello")}, WithBlockSize(1000))
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	defer a.Close()

	// 512 header + 512 padded content + 1024 trailer = 2048 bytes.
	var sizes []int
	for {
		b, err := a.NextBlock()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextBlock: %v", err)
		}
		sizes = append(sizes, len(b))
	}
	want := []int{1000, 1000, 48}
	if len(sizes) != len(want) {
		t.Fatalf("sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("sizes = %v, want %v", sizes, want)
			break
		}
	}
}

func TestClose_BeforeFullyRead(t *testing.T) {
	a, err := FromFiles(map[string][]byte{"big": bytes.Repeat([]byte("z"), 1<<20)}, WithBlockSize(512))
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}

	if _, err := a.NextBlock(); err != nil {
		t.Fatalf("NextBlock: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := a.NextBlock(); err == nil {
		t.Error("NextBlock after Close should fail")
	}
}

func TestFromFiles_Gzip(t *testing.T) {
	files := map[string][]byte{"Dockerfile": []byte("FROM scratch\n")}
	a, err := FromFiles(files, WithGzip())
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	defer a.Close()

	zr, err := pgzip.NewReader(a)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	got, _ := readEntries(t, zr)
	if string(got["Dockerfile"]) != "FROM scratch\n" {
		t.Errorf("Dockerfile = %q", got["Dockerfile"])
	}
}

func TestFromFiles_Excludes(t *testing.T) {
	files := map[string][]byte{
		"Dockerfile":   []byte("FROM scratch\n"),
		"app.go":       []byte("package main"),
		"debug.log":    []byte("noise"),
		"logs/one.log": []byte("noise"),
	}
	a, err := FromFiles(files, WithExcludes("*.log", "Dockerfile"))
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	defer a.Close()

	got, _ := readEntries(t, a)
	var names []string
	for name := range got {
		names = append(names, name)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %v, want Dockerfile and app.go", names)
	}
	if _, ok := got["Dockerfile"]; !ok {
		t.Errorf("Dockerfile must never be excluded: %s", strings.Join(names, ","))
	}
}
