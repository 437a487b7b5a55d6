// Package cmd provides CLI commands for the dockerapi binary.
package cmd

import "github.com/urfave/cli/v2"

// Global flags, accepted before the command name.
var (
	// ConfigFlag points at a dockerapi.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to a dockerapi.yaml config file",
		EnvVars: []string{"DOCKERAPI_CONFIG"},
	}

	// HostFlag selects the engine endpoint.
	HostFlag = &cli.StringFlag{
		Name:    "host",
		Aliases: []string{"H"},
		Usage:   "Engine endpoint: unix://, tcp://, http:// or https://",
		EnvVars: []string{"DOCKER_HOST"},
	}

	// APIVersionFlag pins the engine API version.
	APIVersionFlag = &cli.StringFlag{
		Name:    "api-version",
		Usage:   "Engine API version",
		EnvVars: []string{"DOCKER_API_VERSION"},
	}

	// LogLevelFlag sets the structured log level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}
)

// Output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format: json, table, yaml",
	}

	// TUIFlag enables Bubble Tea interactive mode (build, logs).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode",
	}
)

// GlobalFlags returns the flags shared by every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, HostFlag, APIVersionFlag, LogLevelFlag}
}

// withOutputFlags appends FormatFlag and, when tui is set, TUIFlag.
func withOutputFlags(tui bool, flags ...cli.Flag) []cli.Flag {
	flags = append(flags, FormatFlag)
	if tui {
		flags = append(flags, TUIFlag)
	}
	return flags
}
