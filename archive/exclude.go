package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/janstenpickle/docker-api/apierr"
)

// DockerignoreFile is the exclusion file read by WithDockerignore.
const DockerignoreFile = ".dockerignore"

// matcher decides which archive paths are left out.
// A nil matcher excludes nothing.
type matcher struct {
	rules *ignore.GitIgnore
	keep  map[string]struct{}
}

// newMatcher compiles the configured patterns. root is empty for in-memory
// archives, which never read a .dockerignore.
func newMatcher(root string, o options) (*matcher, error) {
	patterns := append([]string(nil), o.excludes...)

	if o.dockerignore && root != "" {
		data, err := os.ReadFile(filepath.Join(root, DockerignoreFile))
		switch {
		case err == nil:
			patterns = append(patterns, strings.Split(string(data), "\n")...)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, apierr.New(apierr.ErrInvalidInput, "archive", fmt.Errorf("read %s: %w", DockerignoreFile, err))
		}
	}

	if len(patterns) == 0 {
		return nil, nil
	}

	return &matcher{
		rules: ignore.CompileIgnoreLines(patterns...),
		keep: map[string]struct{}{
			DockerignoreFile:         {},
			path.Clean(o.dockerfile): {},
		},
	}, nil
}

// excluded reports whether rel (slash separated) is left out.
func (m *matcher) excluded(rel string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.keep[rel]; ok {
		return false
	}
	return m.rules.MatchesPath(rel)
}
