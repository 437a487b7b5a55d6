package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/janstenpickle/docker-api/types"
)

// App returns the dockerapi application. The caller sets ExitErrHandler.
func App(commit string) *cli.App {
	return &cli.App{
		Name:    "dockerapi",
		Usage:   "Build images and manage resources over the docker engine API",
		Version: fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:   GlobalFlags(),
		Commands: []*cli.Command{
			BuildCommand(),
			InsertCommand(),
			ImportCommand(),
			ImagesCommand(),
			PsCommand(),
			InspectCommand(),
			LogsCommand(),
			VersionCommand(commit),
		},
	}
}
