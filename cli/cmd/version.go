package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/janstenpickle/docker-api/resource"
	"github.com/janstenpickle/docker-api/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	APIVersion string `json:"api_version"`
	// Engine is set with --engine.
	Engine *resource.VersionInfo `json:"engine,omitempty" render:"-"`
	// APISupported reports whether the engine speaks APIVersion.
	APISupported *bool `json:"api_supported,omitempty"`
}

// VersionCommand returns the version command. Without --engine it does not
// contact the engine.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: withOutputFlags(false,
			&cli.BoolFlag{Name: "engine", Usage: "Also query the engine version"},
		),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := newRenderer(c)
		if err != nil {
			return err
		}

		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		resp := VersionResponse{
			Version:    types.Version,
			Commit:     commit,
			APIVersion: s.apiVersion,
		}
		if c.Bool("engine") {
			info, err := s.client.Version(c.Context)
			if err != nil {
				return exitError(err)
			}
			supported, err := s.client.SupportsAPI(c.Context, s.apiVersion)
			if err != nil {
				return exitError(err)
			}
			resp.Engine = info
			resp.APISupported = &supported
		}
		return r.Render(resp)
	}
}
