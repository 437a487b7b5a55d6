package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/janstenpickle/docker-api/cli/render"
	"github.com/janstenpickle/docker-api/cli/tui"
	"github.com/janstenpickle/docker-api/lode"
)

// defaultLogsLimit bounds the build list.
const defaultLogsLimit = 20

// BuildRow is one line of the build list.
type BuildRow struct {
	BuildID       string `json:"build_id"`
	Tag           string `json:"tag"`
	Outcome       string `json:"outcome"`
	ImageID       string `json:"image_id"`
	Events        int64  `json:"events"`
	BytesUploaded int64  `json:"bytes_uploaded" render:"size"`
	DurationMs    int64  `json:"duration_ms"`
	StartedAt     string `json:"started_at"`
}

// LogsCommand returns the logs command.
func LogsCommand() *cli.Command {
	return &cli.Command{
		Name:      "logs",
		Usage:     "List stored builds, or show the transcript of one build",
		ArgsUsage: "[BUILD_ID]",
		Flags: withOutputFlags(true,
			&cli.StringFlag{Name: "day", Usage: "Only builds started on this day (YYYY-MM-DD)"},
			&cli.IntFlag{Name: "limit", Value: defaultLogsLimit, Usage: "Maximum builds to list (0 for all)"},
		),
		Action: logsAction,
	}
}

func logsAction(c *cli.Context) error {
	if c.NArg() > 1 {
		return usageError("logs takes at most one BUILD_ID")
	}
	r, err := newRenderer(c)
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ds, err := s.dataset(c.Context)
	if err != nil {
		return usageError("transcripts: %v", err)
	}
	if ds == nil {
		return usageError("transcripts are not configured (set transcripts.backend in the config file)")
	}

	if id := c.Args().First(); id != "" {
		t, err := lode.QueryTranscript(c.Context, ds, id)
		if errors.Is(err, lode.ErrBuildNotFound) {
			return usageError("%v", err)
		}
		if err != nil {
			return cli.Exit(err.Error(), exitTransport)
		}
		switch {
		case c.Bool(TUIFlag.Name):
			return tui.RunTranscript(t)
		case r.Format() == render.FormatTable:
			_, err := fmt.Fprint(c.App.Writer, tui.RenderTranscript(t))
			return err
		default:
			return r.Render(t)
		}
	}

	if c.Bool(TUIFlag.Name) {
		return usageError("--tui needs a BUILD_ID")
	}
	results, err := lode.ListBuilds(c.Context, ds, c.String("day"), c.Int("limit"))
	if err != nil {
		return cli.Exit(err.Error(), exitTransport)
	}
	rows := make([]BuildRow, 0, len(results))
	for _, res := range results {
		rows = append(rows, BuildRow{
			BuildID:       res.BuildID,
			Tag:           res.Tag,
			Outcome:       res.Outcome,
			ImageID:       res.ImageID,
			Events:        res.EventCount,
			BytesUploaded: res.BytesUploaded,
			DurationMs:    res.DurationMs,
			StartedAt:     res.StartedAt,
		})
	}
	return r.Render(rows)
}
