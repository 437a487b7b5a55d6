package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/janstenpickle/docker-api/build"
	"github.com/janstenpickle/docker-api/cli/config"
	"github.com/janstenpickle/docker-api/cli/tui"
	"github.com/janstenpickle/docker-api/resource"
	"github.com/janstenpickle/docker-api/stream"
)

// BuildResponse is the output of build and insert.
type BuildResponse struct {
	ImageID       string `json:"image_id"`
	Tag           string `json:"tag,omitempty"`
	Events        int64  `json:"events"`
	BytesUploaded int64  `json:"bytes_uploaded" render:"size"`
	DurationMs    int64  `json:"duration_ms"`
}

// buildOptionFlags are shared by build and insert.
func buildOptionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Name the image (repo:tag)"},
		&cli.BoolFlag{Name: "no-cache", Usage: "Do not use the build cache"},
		&cli.BoolFlag{Name: "rm", Value: true, Usage: "Remove intermediate containers after a successful build"},
		&cli.BoolFlag{Name: "force-rm", Usage: "Always remove intermediate containers"},
		&cli.BoolFlag{Name: "pull", Usage: "Always attempt to pull a newer base image"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress build output"},
		&cli.StringSliceFlag{Name: "build-arg", Usage: "Build-time variable KEY=VALUE"},
		&cli.StringSliceFlag{Name: "label", Usage: "Image label KEY=VALUE"},
		&cli.StringFlag{Name: "platform", Usage: "Target platform, e.g. linux/amd64"},
		&cli.StringFlag{Name: "registry-config", Usage: "X-Registry-Config header value (base64 JSON)"},
		&cli.BoolFlag{Name: "gzip", Usage: "Compress the build context"},
		&cli.StringFlag{Name: "block-size", Usage: "Upload block size, e.g. 32KiB"},
	}
}

// BuildCommand returns the build command.
func BuildCommand() *cli.Command {
	flags := append(buildOptionFlags(),
		&cli.StringFlag{Name: "dockerfile", Usage: "Dockerfile path inside the context"},
		&cli.StringSliceFlag{Name: "exclude", Usage: ".dockerignore-style pattern to leave out of the context"},
		&cli.BoolFlag{Name: "dockerignore", Usage: "Apply the context's .dockerignore"},
	)
	return &cli.Command{
		Name:      "build",
		Usage:     "Build an image from a context directory",
		ArgsUsage: "[CONTEXT]",
		Flags:     withOutputFlags(true, flags...),
		Action:    buildAction,
	}
}

func buildAction(c *cli.Context) error {
	if c.NArg() > 1 {
		return usageError("build takes at most one context directory")
	}
	dir := c.Args().First()
	if dir == "" {
		dir = "."
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	opts, err := buildOptions(c, s.cfg)
	if err != nil {
		return usageError("%v", err)
	}
	opts.Dockerfile = c.String("dockerfile")
	opts.Excludes = c.StringSlice("exclude")
	opts.Dockerignore = resolveBool(c, "dockerignore", s.cfg.Build.Dockerignore)

	return runBuild(c, s, opts.Tag, func(ctx context.Context, b *build.Builder, sink stream.Sink) (*resource.Image, error) {
		return b.Build(ctx, build.Directory(dir), opts, sink)
	})
}

// buildOptions resolves the shared build flags against the config file.
func buildOptions(c *cli.Context, cfg *config.Config) (build.Options, error) {
	args, err := parseKeyValues(c.StringSlice("build-arg"), os.LookupEnv)
	if err != nil {
		return build.Options{}, err
	}
	labels, err := parseKeyValues(c.StringSlice("label"), nil)
	if err != nil {
		return build.Options{}, err
	}
	return build.Options{
		Tag:              c.String("tag"),
		NoCache:          c.Bool("no-cache"),
		KeepIntermediate: !resolveBool(c, "rm", cfg.Build.RemoveIntermediate()),
		ForceRemove:      c.Bool("force-rm"),
		Pull:             resolveBool(c, "pull", cfg.Build.Pull),
		Quiet:            c.Bool("quiet"),
		BuildArgs:        args,
		Labels:           labels,
		Platform:         c.String("platform"),
		RegistryConfig:   c.String("registry-config"),
		Gzip:             resolveBool(c, "gzip", cfg.Build.Gzip),
	}, nil
}

// parseKeyValues parses KEY=VALUE pairs. A bare KEY takes its value from
// lookup and is skipped when lookup has none; with a nil lookup it maps to
// the empty string.
func parseKeyValues(pairs []string, lookup func(string) (string, bool)) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if k == "" {
			return nil, fmt.Errorf("invalid KEY=VALUE pair %q", p)
		}
		if !ok && lookup != nil {
			var found bool
			if v, found = lookup(k); !found {
				continue
			}
		}
		out[k] = v
	}
	return out, nil
}

type buildFunc func(ctx context.Context, b *build.Builder, sink stream.Sink) (*resource.Image, error)

// runBuild runs fn with progress on stderr (or in the TUI) and renders the
// result on stdout.
func runBuild(c *cli.Context, s *session, tag string, fn buildFunc) error {
	r, err := newRenderer(c)
	if err != nil {
		return err
	}
	blockSize, err := s.blockSize(c)
	if err != nil {
		return usageError("%v", err)
	}
	b, err := s.builder(c.Context, blockSize)
	if err != nil {
		return usageError("%v", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	var img *resource.Image
	if c.Bool(TUIFlag.Name) {
		title := tag
		if title == "" {
			title = "build"
		}
		_, err = tui.RunBuild(ctx, title, func(ctx context.Context, sink stream.Sink) (string, error) {
			built, err := fn(ctx, b, sink)
			if err != nil {
				return "", err
			}
			img = built
			return built.ID(), nil
		})
	} else {
		var sink stream.Sink
		var progress *stream.WriterSink
		if !c.Bool("quiet") {
			progress = stream.NewWriterSink(c.App.ErrWriter)
			sink = progress
		}
		img, err = fn(ctx, b, sink)
		if progress != nil {
			if werr := progress.Err(); werr != nil {
				s.logger.Warn("build progress output lost", map[string]any{"error": werr.Error()})
			}
		}
	}
	if err != nil {
		return exitError(err)
	}

	snap := s.collector.Snapshot()
	return r.Render(BuildResponse{
		ImageID:       img.ID(),
		Tag:           tag,
		Events:        snap.EventsEmitted,
		BytesUploaded: snap.BytesUploaded,
		DurationMs:    time.Since(start).Milliseconds(),
	})
}
