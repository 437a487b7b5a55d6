package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/janstenpickle/docker-api/apierr"
)

// Exit codes.
const (
	exitSuccess      = 0
	exitBuildFailed  = 1
	exitTransport    = 2
	exitInvalidInput = 3
	exitUnexpected   = 4
)

// exitCode maps an error to the process exit code. Cancellation counts as a
// build that did not complete.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, apierr.ErrBuildFailed), errors.Is(err, apierr.ErrCanceled):
		return exitBuildFailed
	case errors.Is(err, apierr.ErrInvalidInput):
		return exitInvalidInput
	case errors.Is(err, apierr.ErrTransport), errors.Is(err, apierr.ErrClient), errors.Is(err, apierr.ErrServer):
		return exitTransport
	case errors.Is(err, apierr.ErrMalformedStream), errors.Is(err, apierr.ErrUnexpectedResponse):
		return exitUnexpected
	default:
		return exitBuildFailed
	}
}

// exitError wraps err in a cli.ExitCoder carrying its exit code.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	return cli.Exit(err.Error(), exitCode(err))
}

// usageError reports bad flags, arguments or config.
func usageError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), exitInvalidInput)
}
