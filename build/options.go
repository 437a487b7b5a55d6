package build

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/janstenpickle/docker-api/archive"
)

// Options configures one build. The zero value is a plain build of
// ./Dockerfile that removes intermediate containers.
type Options struct {
	// Tag names the resulting image (repo:tag).
	Tag string
	// Dockerfile is the path of the Dockerfile inside the context.
	Dockerfile string
	NoCache    bool
	// KeepIntermediate keeps intermediate containers (rm=false).
	KeepIntermediate bool
	// ForceRemove removes intermediate containers even after a failure.
	ForceRemove bool
	// Pull always attempts to pull a newer base image.
	Pull bool
	// Quiet suppresses verbose build output.
	Quiet     bool
	BuildArgs map[string]string
	Labels    map[string]string
	Platform  string
	// RegistryConfig is passed through verbatim as X-Registry-Config.
	RegistryConfig string

	// Excludes are .dockerignore-style patterns applied to the context.
	Excludes []string
	// Dockerignore reads patterns from the context's .dockerignore.
	Dockerignore bool
	// Gzip compresses the context. The engine detects compression itself.
	Gzip bool
}

// query encodes the options as /build query parameters.
func (o Options) query() (url.Values, error) {
	q := url.Values{}
	setNonEmpty(q, "t", o.Tag)
	setNonEmpty(q, "dockerfile", o.Dockerfile)
	setBool(q, "nocache", o.NoCache)
	q.Set("rm", strconv.FormatBool(!o.KeepIntermediate))
	setBool(q, "forcerm", o.ForceRemove)
	setBool(q, "pull", o.Pull)
	setBool(q, "q", o.Quiet)
	setNonEmpty(q, "platform", o.Platform)

	if len(o.BuildArgs) > 0 {
		b, err := json.Marshal(o.BuildArgs)
		if err != nil {
			return nil, err
		}
		q.Set("buildargs", string(b))
	}
	if len(o.Labels) > 0 {
		b, err := json.Marshal(o.Labels)
		if err != nil {
			return nil, err
		}
		q.Set("labels", string(b))
	}
	return q, nil
}

func (o Options) header() http.Header {
	h := http.Header{}
	if o.RegistryConfig != "" {
		h.Set("X-Registry-Config", o.RegistryConfig)
	}
	return h
}

func (o Options) archiveOptions(blockSize int) []archive.Option {
	opts := []archive.Option{archive.WithBlockSize(blockSize)}
	if o.Dockerfile != "" {
		opts = append(opts, archive.WithDockerfile(o.Dockerfile))
	}
	if len(o.Excludes) > 0 {
		opts = append(opts, archive.WithExcludes(o.Excludes...))
	}
	if o.Dockerignore {
		opts = append(opts, archive.WithDockerignore())
	}
	if o.Gzip {
		opts = append(opts, archive.WithGzip())
	}
	return opts
}

func setNonEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setBool(q url.Values, key string, v bool) {
	if v {
		q.Set(key, "1")
	}
}

// Source is a build context: a FileSet or a Directory.
type Source interface {
	open(opts []archive.Option) (*archive.Archive, error)
	String() string
}

// FileSet is an in-memory build context keyed by archive path.
type FileSet map[string][]byte

func (f FileSet) open(opts []archive.Option) (*archive.Archive, error) {
	return archive.FromFiles(f, opts...)
}

func (f FileSet) String() string {
	return "fileset(" + strconv.Itoa(len(f)) + " files)"
}

// Directory is a build context rooted at a local directory.
type Directory string

func (d Directory) open(opts []archive.Option) (*archive.Archive, error) {
	return archive.FromDirectory(string(d), opts...)
}

func (d Directory) String() string { return string(d) }
