package archive

// Option configures archive construction.
type Option func(*options)

type options struct {
	blockSize    int
	excludes     []string
	dockerignore bool
	dockerfile   string
	gzip         bool
}

func defaultOptions() options {
	return options{
		blockSize:  DefaultBlockSize,
		dockerfile: "Dockerfile",
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.blockSize <= 0:
		o.blockSize = DefaultBlockSize
	case o.blockSize > MaxBlockSize:
		o.blockSize = MaxBlockSize
	}
	return o
}

// WithBlockSize sets the NextBlock size. Non-positive values keep the default;
// values above MaxBlockSize are capped.
func WithBlockSize(n int) Option {
	return func(o *options) { o.blockSize = n }
}

// WithExcludes adds gitignore-style exclusion patterns.
func WithExcludes(patterns ...string) Option {
	return func(o *options) { o.excludes = append(o.excludes, patterns...) }
}

// WithDockerignore reads exclusion patterns from <root>/.dockerignore.
// A missing file excludes nothing.
func WithDockerignore() Option {
	return func(o *options) { o.dockerignore = true }
}

// WithDockerfile names the build file that exclusions must never remove.
func WithDockerfile(name string) Option {
	return func(o *options) {
		if name != "" {
			o.dockerfile = name
		}
	}
}

// WithGzip compresses the archive stream.
func WithGzip() Option {
	return func(o *options) { o.gzip = true }
}
