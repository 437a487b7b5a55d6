package cmd

import (
	"github.com/urfave/cli/v2"
)

// InspectCommand returns the inspect command group.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Show low-level information about an image or container",
		Subcommands: []*cli.Command{
			inspectImageCommand(),
			inspectContainerCommand(),
		},
	}
}

func inspectImageCommand() *cli.Command {
	return &cli.Command{
		Name:      "image",
		Usage:     "Inspect an image",
		ArgsUsage: "ID",
		Flags: withOutputFlags(false,
			&cli.BoolFlag{Name: "history", Usage: "Show layer history instead"},
		),
		Action: inspectImageAction,
	}
}

func inspectImageAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("inspect image takes exactly one ID")
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

	img := s.client.Image(c.Args().First())
	if c.Bool("history") {
		history, err := img.History(c.Context)
		if err != nil {
			return exitError(err)
		}
		return r.Render(history)
	}
	doc, err := img.JSON(c.Context)
	if err != nil {
		return exitError(err)
	}
	return r.Render(doc)
}

func inspectContainerCommand() *cli.Command {
	return &cli.Command{
		Name:      "container",
		Usage:     "Inspect a container",
		ArgsUsage: "ID",
		Flags: withOutputFlags(false,
			&cli.BoolFlag{Name: "changes", Usage: "Show filesystem changes instead"},
		),
		Action: inspectContainerAction,
	}
}

func inspectContainerAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("inspect container takes exactly one ID")
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

	ct := s.client.Container(c.Args().First())
	if c.Bool("changes") {
		changes, err := ct.Changes(c.Context)
		if err != nil {
			return exitError(err)
		}
		return r.Render(changes)
	}
	doc, err := ct.JSON(c.Context)
	if err != nil {
		return exitError(err)
	}
	return r.Render(doc)
}
