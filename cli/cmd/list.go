package cmd

import (
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/janstenpickle/docker-api/cli/render"
)

// shortIDLen is the identifier length shown in tables.
const shortIDLen = 12

// ImageRow is one line of the images command.
type ImageRow struct {
	ID       string    `json:"id"`
	RepoTags []string  `json:"repo_tags"`
	Size     int64     `json:"size" render:"size"`
	Created  time.Time `json:"created"`
}

// ContainerRow is one line of the ps command.
type ContainerRow struct {
	ID     string   `json:"id"`
	Names  []string `json:"names"`
	Image  string   `json:"image"`
	State  string   `json:"state"`
	Status string   `json:"status"`
}

func newRenderer(c *cli.Context) (*render.Renderer, error) {
	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, usageError("%v", err)
	}
	return r, nil
}

// shortID strips the digest algorithm and truncates for table output.
func shortID(id string, r *render.Renderer) string {
	if r.Format() != render.FormatTable {
		return id
	}
	if _, hex, ok := strings.Cut(id, ":"); ok {
		id = hex
	}
	if len(id) > shortIDLen {
		id = id[:shortIDLen]
	}
	return id
}

// ImagesCommand returns the images command.
func ImagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "images",
		Usage: "List images",
		Flags: withOutputFlags(false,
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include intermediate images"},
		),
		Action: imagesAction,
	}
}

func imagesAction(c *cli.Context) error {
	r, err := newRenderer(c)
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	images, err := s.client.Images(c.Context, c.Bool("all"))
	if err != nil {
		return exitError(err)
	}
	rows := make([]ImageRow, 0, len(images))
	for _, img := range images {
		rows = append(rows, ImageRow{
			ID:       shortID(img.ID, r),
			RepoTags: img.RepoTags,
			Size:     img.Size,
			Created:  time.Unix(img.Created, 0).UTC(),
		})
	}
	return r.Render(rows)
}

// PsCommand returns the ps command.
func PsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ps",
		Usage: "List containers",
		Flags: withOutputFlags(false,
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include stopped containers"},
		),
		Action: psAction,
	}
}

func psAction(c *cli.Context) error {
	r, err := newRenderer(c)
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	containers, err := s.client.Containers(c.Context, c.Bool("all"))
	if err != nil {
		return exitError(err)
	}
	rows := make([]ContainerRow, 0, len(containers))
	for _, ct := range containers {
		names := make([]string, len(ct.Names))
		for i, n := range ct.Names {
			names[i] = strings.TrimPrefix(n, "/")
		}
		rows = append(rows, ContainerRow{
			ID:     shortID(ct.ID, r),
			Names:  names,
			Image:  ct.Image,
			State:  ct.State,
			Status: ct.Status,
		})
	}
	return r.Render(rows)
}
