package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/resource"
	"github.com/janstenpickle/docker-api/stream"
)

// InsertFile copies one local file into an image.
type InsertFile struct {
	// Local is the path on this machine.
	Local string
	// Dest is the absolute path inside the image.
	Dest string
}

// InsertOptions configures InsertLocal.
type InsertOptions struct {
	Files []InsertFile
	// Build carries the remaining build options. Its Dockerfile and
	// exclusion settings are ignored.
	Build Options
}

const insertDockerfile = "Dockerfile"

// InsertLocal builds a new image from img with local files added to it.
// A Dockerfile of "FROM <img>" and one "ADD <basename> <dest>" per file is
// generated and built together with the files.
//
// Missing files and two files sharing a basename are apierr.ErrInvalidInput.
func (b *Builder) InsertLocal(ctx context.Context, img *resource.Image, opts InsertOptions, sink stream.Sink) (*resource.Image, error) {
	const op = "insert"
	if img == nil || img.ID() == "" {
		return nil, apierr.New(apierr.ErrInvalidInput, op, errors.New("base image is required"))
	}
	if len(opts.Files) == 0 {
		return nil, apierr.New(apierr.ErrInvalidInput, op, errors.New("no files to insert"))
	}

	files := make(FileSet, len(opts.Files)+1)
	var df strings.Builder
	fmt.Fprintf(&df, "FROM %s\n", img.ID())

	for _, f := range opts.Files {
		base := filepath.Base(f.Local)
		if base == insertDockerfile {
			return nil, apierr.New(apierr.ErrInvalidInput, op, fmt.Errorf("%s: basename collides with the generated Dockerfile", f.Local))
		}
		if _, dup := files[base]; dup {
			return nil, apierr.New(apierr.ErrInvalidInput, op, fmt.Errorf("%s: basename %q is used twice", f.Local, base))
		}
		if f.Dest == "" {
			return nil, apierr.New(apierr.ErrInvalidInput, op, fmt.Errorf("%s: destination is required", f.Local))
		}

		content, err := os.ReadFile(f.Local)
		if err != nil {
			return nil, apierr.New(apierr.ErrInvalidInput, op, err)
		}
		files[base] = content
		fmt.Fprintf(&df, "ADD %s %s\n", base, path.Clean(f.Dest))
	}
	files[insertDockerfile] = []byte(df.String())

	bopts := opts.Build
	bopts.Dockerfile = ""
	bopts.Excludes = nil
	bopts.Dockerignore = false
	return b.Build(ctx, files, bopts, sink)
}
