package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/janstenpickle/docker-api/build"
	"github.com/janstenpickle/docker-api/resource"
	"github.com/janstenpickle/docker-api/stream"
)

// InsertCommand returns the insert command.
func InsertCommand() *cli.Command {
	flags := append(buildOptionFlags(),
		&cli.StringFlag{Name: "image", Usage: "Base image ID or name", Required: true},
	)
	return &cli.Command{
		Name:      "insert",
		Usage:     "Build a new image from an existing one with local files added",
		ArgsUsage: "LOCAL:DEST [LOCAL:DEST...]",
		Flags:     withOutputFlags(true, flags...),
		Action:    insertAction,
	}
}

func insertAction(c *cli.Context) error {
	files, err := parseInsertArgs(c.Args().Slice())
	if err != nil {
		return usageError("%v", err)
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
	base := s.client.Image(c.String("image"))

	return runBuild(c, s, opts.Tag, func(ctx context.Context, b *build.Builder, sink stream.Sink) (*resource.Image, error) {
		return b.InsertLocal(ctx, base, build.InsertOptions{Files: files, Build: opts}, sink)
	})
}

// parseInsertArgs splits LOCAL:DEST arguments at the last colon.
func parseInsertArgs(args []string) ([]build.InsertFile, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one LOCAL:DEST argument is required")
	}
	files := make([]build.InsertFile, 0, len(args))
	for _, a := range args {
		i := strings.LastIndex(a, ":")
		if i <= 0 || i == len(a)-1 {
			return nil, fmt.Errorf("invalid argument %q: want LOCAL:DEST", a)
		}
		files = append(files, build.InsertFile{Local: a[:i], Dest: a[i+1:]})
	}
	return files, nil
}

// ImportCommand returns the import command.
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create an image from a root filesystem tarball (- for stdin)",
		ArgsUsage: "FILE",
		Flags: withOutputFlags(false,
			&cli.StringFlag{Name: "repo", Usage: "Repository name for the image"},
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Tag for the image"},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Commit message"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress progress output"},
		),
		Action: importAction,
	}
}

func importAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("import takes exactly one FILE argument")
	}
	r, err := newRenderer(c)
	if err != nil {
		return err
	}

	in := c.App.Reader
	if name := c.Args().First(); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return usageError("%v", err)
		}
		defer f.Close()
		in = f
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var sink stream.Sink
	if !c.Bool("quiet") {
		sink = stream.NewWriterSink(c.App.ErrWriter)
	}
	img, err := s.client.ImportImage(c.Context, in, resource.ImportOptions{
		Repo:    c.String("repo"),
		Tag:     c.String("tag"),
		Message: c.String("message"),
	}, sink)
	if err != nil {
		return exitError(err)
	}
	return r.Render(BuildResponse{ImageID: img.ID(), Tag: c.String("tag")})
}
