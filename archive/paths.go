package archive

import (
	"fmt"
	"path"
	"strings"

	"github.com/janstenpickle/docker-api/apierr"
)

// NormalizePath turns p into an archive-relative slash path: leading slashes
// are stripped and the result is cleaned. Empty paths and paths with a ".."
// segment are rejected.
func NormalizePath(p string) (string, error) {
	trimmed := strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/")
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == ".." {
			return "", apierr.New(apierr.ErrInvalidInput, "archive", fmt.Errorf("path %q escapes the archive root", p))
		}
	}
	cleaned := path.Clean(trimmed)
	if trimmed == "" || cleaned == "." {
		return "", apierr.New(apierr.ErrInvalidInput, "archive", fmt.Errorf("empty path %q", p))
	}
	return cleaned, nil
}
