package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/iox"
)

// planned is one directory entry resolved by the planning pass.
type planned struct {
	rel  string // archive-relative slash path
	abs  string
	info fs.FileInfo
	link string // symlink target, verbatim
}

// FromDirectory builds an archive of the tree under root.
//
// The whole tree is planned before any byte is produced: every entry is
// stat'ed and every regular file is opened once, so a missing root, an
// unreadable directory or an unreadable file is reported here rather than in
// the middle of an upload. Content is then streamed lazily.
func FromDirectory(root string, opts ...Option) (*Archive, error) {
	o := applyOptions(opts)

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, apierr.New(apierr.ErrInvalidInput, "archive", fmt.Errorf("resolve root %q: %w", root, err))
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, apierr.New(apierr.ErrInvalidInput, "archive", fmt.Errorf("stat root %q: %w", root, err))
	}
	if !info.IsDir() {
		return nil, apierr.New(apierr.ErrInvalidInput, "archive", fmt.Errorf("root %q is not a directory", root))
	}

	m, err := newMatcher(resolved, o)
	if err != nil {
		return nil, err
	}

	plan, err := planDirectory(resolved, m)
	if err != nil {
		return nil, err
	}

	return newArchive(o, func(tw *tar.Writer) error {
		for _, p := range plan {
			if err := writePlanned(tw, p); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func planDirectory(root string, m *matcher) ([]planned, error) {
	var plan []planned

	err := filepath.WalkDir(root, func(abs string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return invalidPath(abs, walkErr)
		}
		if abs == root {
			return nil
		}

		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return invalidPath(abs, err)
		}
		rel = filepath.ToSlash(rel)

		if m.excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return invalidPath(abs, err)
		}

		p := planned{rel: rel, abs: abs, info: info}
		mode := info.Mode()
		switch {
		case mode.IsDir():
		case mode.IsRegular():
			f, err := os.Open(abs)
			if err != nil {
				return invalidPath(abs, err)
			}
			iox.DiscardClose(f)
		case mode&fs.ModeSymlink != 0:
			target, err := os.Readlink(abs)
			if err != nil {
				return invalidPath(abs, err)
			}
			p.link = target
		default:
			return invalidPath(abs, fmt.Errorf("unsupported file type %s", mode.Type()))
		}

		plan = append(plan, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func writePlanned(tw *tar.Writer, p planned) error {
	hdr, err := tar.FileInfoHeader(p.info, p.link)
	if err != nil {
		return invalidPath(p.abs, err)
	}
	hdr.Name = p.rel
	if p.info.IsDir() {
		hdr.Name += "/"
	}
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""
	hdr.ModTime = p.info.ModTime().Truncate(time.Second)
	hdr.AccessTime, hdr.ChangeTime = time.Time{}, time.Time{}

	if err := tw.WriteHeader(hdr); err != nil {
		return invalidPath(p.abs, err)
	}
	if !p.info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(p.abs)
	if err != nil {
		return invalidPath(p.abs, err)
	}
	defer iox.DiscardClose(f)

	if _, err := io.CopyN(tw, f, hdr.Size); err != nil {
		return invalidPath(p.abs, fmt.Errorf("copy %d bytes: %w", hdr.Size, err))
	}
	return nil
}

func invalidPath(path string, err error) error {
	return apierr.New(apierr.ErrInvalidInput, "archive", fmt.Errorf("%s: %w", path, err))
}
