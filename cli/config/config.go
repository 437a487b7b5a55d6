package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/docker/go-units"

	"github.com/janstenpickle/docker-api/archive"
)

// Config represents a dockerapi.yaml configuration file.
// All values are optional defaults; command-line flags override them.
type Config struct {
	// Host is the engine endpoint (unix://, tcp://, http:// or https://).
	Host        string            `yaml:"host"`
	APIVersion  string            `yaml:"api_version"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	DialTimeout Duration          `yaml:"dial_timeout"`
	// BlockSize is the upload block size, e.g. "32KiB".
	BlockSize ByteSize `yaml:"block_size"`

	Build       BuildConfig      `yaml:"build"`
	Transcripts TranscriptConfig `yaml:"transcripts"`
	Adapter     AdapterConfig    `yaml:"adapter"`
	Log         LogConfig        `yaml:"log"`
}

// BuildConfig holds build option defaults.
type BuildConfig struct {
	// RM removes intermediate containers. Unset means true.
	RM           *bool `yaml:"rm,omitempty"`
	Pull         bool  `yaml:"pull"`
	Dockerignore bool  `yaml:"dockerignore"`
	Gzip         bool  `yaml:"gzip"`
}

// RemoveIntermediate resolves RM against its default.
func (b BuildConfig) RemoveIntermediate() bool {
	return b.RM == nil || *b.RM
}

// TranscriptConfig selects where build transcripts are stored.
// An empty Backend disables transcripts.
type TranscriptConfig struct {
	Dataset string `yaml:"dataset"`
	// Backend is "fs" or "s3".
	Backend string `yaml:"backend"`
	// Path is a directory for fs, bucket[/prefix] for s3.
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	MaxEvents   int    `yaml:"max_events"`
}

// AdapterConfig configures build completion notifications.
type AdapterConfig struct {
	// Type is "webhook" or "redis". Empty disables notifications.
	Type     string            `yaml:"type"`
	URL      string            `yaml:"url"`
	Channel  string            `yaml:"channel,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Timeout  Duration          `yaml:"timeout,omitempty"`
	Retries  *int              `yaml:"retries,omitempty"`
	Encoding string            `yaml:"encoding,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Validate reports settings that cannot work regardless of flags.
func (c *Config) Validate() error {
	switch c.Transcripts.Backend {
	case "":
	case "fs", "s3":
		if c.Transcripts.Path == "" {
			return fmt.Errorf("transcripts.path is required for backend %q", c.Transcripts.Backend)
		}
	default:
		return fmt.Errorf("transcripts.backend must be fs or s3, got %q", c.Transcripts.Backend)
	}

	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			return fmt.Errorf("adapter.url is required for adapter type %q", c.Adapter.Type)
		}
	default:
		return fmt.Errorf("adapter.type must be webhook or redis, got %q", c.Adapter.Type)
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		return errors.New("adapter.retries must be >= 0")
	}
	if c.BlockSize < 0 || c.BlockSize > ByteSize(archive.MaxBlockSize) {
		return fmt.Errorf("block_size must be between 0 and %s", ByteSize(archive.MaxBlockSize))
	}
	if c.Transcripts.MaxEvents < 0 {
		return errors.New("transcripts.max_events must be >= 0")
	}
	return nil
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ByteSize is a size in bytes parsed from strings like "64KiB" or "1MB".
// Both binary and decimal suffixes are read as powers of 1024.
type ByteSize int64

// UnmarshalYAML parses a human-readable size.
func (b *ByteSize) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return fmt.Errorf("invalid size %q: negative", s)
	}
	*b = ByteSize(n)
	return nil
}

// String formats the size with binary units.
func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}
