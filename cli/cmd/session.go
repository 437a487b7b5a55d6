package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/hashicorp/go-multierror"
	lodeapi "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/janstenpickle/docker-api/adapter"
	"github.com/janstenpickle/docker-api/adapter/redis"
	"github.com/janstenpickle/docker-api/adapter/webhook"
	"github.com/janstenpickle/docker-api/archive"
	"github.com/janstenpickle/docker-api/build"
	"github.com/janstenpickle/docker-api/cli/config"
	"github.com/janstenpickle/docker-api/lode"
	"github.com/janstenpickle/docker-api/log"
	"github.com/janstenpickle/docker-api/metrics"
	"github.com/janstenpickle/docker-api/resource"
	"github.com/janstenpickle/docker-api/transport"
	"github.com/janstenpickle/docker-api/types"
)

// defaultLogLevel keeps the CLI quiet unless asked.
const defaultLogLevel = "warn"

// session holds everything one command invocation talks through.
type session struct {
	cfg        *config.Config
	apiVersion string
	logger     *log.Logger
	collector  *metrics.Collector
	transport  *transport.HTTP
	client     *resource.Client
	closers    []func() error
}

// loadConfig reads --config, or returns an empty config when unset.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(ConfigFlag.Name)
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// resolveString prefers an explicitly set flag (or its env var) over the
// config file value.
func resolveString(c *cli.Context, flag, fromConfig string) string {
	if c.IsSet(flag) || fromConfig == "" {
		return c.String(flag)
	}
	return fromConfig
}

// resolveBool prefers an explicitly set flag over the config file value.
func resolveBool(c *cli.Context, flag string, fromConfig bool) bool {
	if c.IsSet(flag) {
		return c.Bool(flag)
	}
	return fromConfig
}

// openSession loads config and opens the transport. Errors are already
// cli.ExitCoder values.
func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, usageError("%v", err)
	}

	level := resolveString(c, LogLevelFlag.Name, cfg.Log.Level)
	if level == "" {
		level = defaultLogLevel
	}
	logger, err := log.NewLogger(level)
	if err != nil {
		return nil, usageError("invalid log level %q: %v", level, err)
	}
	logger = logger.WithOutput(c.App.ErrWriter)

	apiVersion := resolveString(c, APIVersionFlag.Name, cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = types.DefaultAPIVersion
	}
	tr, err := transport.NewHTTP(transport.Config{
		Host:        resolveString(c, HostFlag.Name, cfg.Host),
		APIVersion:  apiVersion,
		Headers:     cfg.Headers,
		DialTimeout: cfg.DialTimeout.Duration,
	})
	if err != nil {
		return nil, usageError("%v", err)
	}

	return &session{
		cfg:        cfg,
		apiVersion: apiVersion,
		logger:     logger,
		collector:  metrics.NewCollector(cfg.Transcripts.Backend, cfg.Adapter.Type),
		transport:  tr,
		client:     resource.NewClient(tr),
	}, nil
}

// Close releases adapters and the transport.
func (s *session) Close() error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		result = multierror.Append(result, s.closers[i]())
	}
	result = multierror.Append(result, s.transport.Close())
	_ = s.logger.Sync()
	return result.ErrorOrNil()
}

// dataset opens the configured transcript dataset, or nil when transcripts
// are disabled.
func (s *session) dataset(ctx context.Context) (lodeapi.Dataset, error) {
	tc := s.cfg.Transcripts
	switch tc.Backend {
	case "":
		return nil, nil
	case "fs":
		return lode.NewFSDataset(tc.Dataset, tc.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(tc.Path)
		return lode.NewS3Dataset(ctx, tc.Dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       tc.Region,
			Endpoint:     tc.Endpoint,
			UsePathStyle: tc.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown transcripts backend %q", tc.Backend)
	}
}

// notifier creates the configured build completion adapter, or nil.
func (s *session) notifier() (adapter.Adapter, error) {
	ac := s.cfg.Adapter
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return webhook.New(webhook.Config{
			URL:      ac.URL,
			Headers:  ac.Headers,
			Timeout:  ac.Timeout.Duration,
			Retries:  retries,
			Encoding: adapter.Encoding(ac.Encoding),
		})
	case "redis":
		retries := redis.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return redis.New(redis.Config{
			URL:      ac.URL,
			Channel:  ac.Channel,
			Timeout:  ac.Timeout.Duration,
			Retries:  retries,
			Encoding: adapter.Encoding(ac.Encoding),
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.Type)
	}
}

// builder wires transcripts and notifications into a Builder.
func (s *session) builder(ctx context.Context, blockSize int) (*build.Builder, error) {
	cfg := build.Config{
		Transport: s.transport,
		Logger:    s.logger,
		Collector: s.collector,
		BlockSize: blockSize,
	}

	ds, err := s.dataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("transcripts: %w", err)
	}
	if ds != nil {
		store := lode.NewStore(ds,
			lode.WithCollector(s.collector),
			lode.WithMaxEvents(s.cfg.Transcripts.MaxEvents),
		)
		cfg.Transcripts = func(buildID string, startedAt time.Time) build.Transcript {
			return store.Begin(buildID, startedAt)
		}
	}

	n, err := s.notifier()
	if err != nil {
		return nil, fmt.Errorf("adapter: %w", err)
	}
	if n != nil {
		cfg.Notifier = n
		s.closers = append(s.closers, n.Close)
	}
	return build.New(cfg)
}

// blockSize resolves --block-size against the config file.
func (s *session) blockSize(c *cli.Context) (int, error) {
	if c.IsSet("block-size") {
		n, err := units.RAMInBytes(c.String("block-size"))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid --block-size %q", c.String("block-size"))
		}
		if n > archive.MaxBlockSize {
			return 0, fmt.Errorf("--block-size %q exceeds %s", c.String("block-size"), units.BytesSize(archive.MaxBlockSize))
		}
		return int(n), nil
	}
	return int(s.cfg.BlockSize), nil
}
