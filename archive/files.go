package archive

import (
	"archive/tar"
	"fmt"
	"sort"

	"github.com/janstenpickle/docker-api/apierr"
)

// Entry is one in-memory file destined for an archive.
type Entry struct {
	Path    string
	Content []byte
}

// FromFiles builds an archive whose entries are the given path → content
// pairs. Every entry is a regular file with FileMode, uid/gid 0 and
// FixedModTime, written in sorted path order, so identical inputs produce
// byte-identical archives.
func FromFiles(files map[string][]byte, opts ...Option) (*Archive, error) {
	o := applyOptions(opts)

	m, err := newMatcher("", o)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(files))
	seen := make(map[string]string, len(files))
	for p, content := range files {
		norm, err := NormalizePath(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[norm]; dup {
			return nil, apierr.New(apierr.ErrInvalidInput, "archive",
				fmt.Errorf("paths %q and %q both normalize to %q", prev, p, norm))
		}
		seen[norm] = p
		if m.excluded(norm) {
			continue
		}
		entries = append(entries, Entry{Path: norm, Content: content})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return newArchive(o, func(tw *tar.Writer) error {
		for _, e := range entries {
			if err := writeEntry(tw, e); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func writeEntry(tw *tar.Writer, e Entry) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     e.Path,
		Mode:     FileMode,
		Size:     int64(len(e.Content)),
		ModTime:  FixedModTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return apierr.New(apierr.ErrInvalidInput, "archive", fmt.Errorf("%s: %w", e.Path, err))
	}
	if _, err := tw.Write(e.Content); err != nil {
		return apierr.New(apierr.ErrInvalidInput, "archive", fmt.Errorf("%s: %w", e.Path, err))
	}
	return nil
}
