package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/namelens/repolens/internal/core/engine"
)

var (
	errInvalidConfig    = errors.New("invalid configuration")
	errStoreUnavailable = errors.New("store unavailable")
)

// ExitWithCodeStderr is a variant that writes to stderr without a logger.
// Use this for early failures before logger initialization.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: %s (exit code: %d)\n", msg, exitCode)
		}
		os.Exit(int(exitCode))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)

	os.Exit(info.Code)
}

// ExitCodeFor maps a command error onto a foundry exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	var (
		cfgErr    *engine.ConfigurationError
		exhausted *engine.RetriesExhaustedError
		netErr    *engine.NetworkError
	)
	switch {
	case err == nil:
		return foundry.ExitCode(0)
	case errors.Is(err, errInvalidConfig), errors.As(err, &cfgErr):
		return foundry.ExitConfigInvalid
	case errors.Is(err, os.ErrNotExist):
		return foundry.ExitFileNotFound
	case errors.Is(err, errStoreUnavailable), errors.As(err, &exhausted), errors.As(err, &netErr):
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}
