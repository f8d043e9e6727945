package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsync/internal/shared"
)

// Exit statuses
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitFetch    = 3
	exitLedger   = 4
	exitAction   = 5
	exitCanceled = 130
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(runner).Run(ctx, os.Args)
	stop()
	runner.Close()

	if err != nil {
		logger.Error("application error", "error", err)
		os.Exit(exitCode(err))
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "plsync",
		Usage:   "Incrementally sync YouTube playlists into audio files, spreadsheets and ledgers",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitCanceled
	case errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrInvalidConfig),
		errors.Is(err, shared.ErrInvalidInput):
		return exitUsage
	case errors.Is(err, shared.ErrFetch):
		return exitFetch
	case errors.Is(err, shared.ErrLedgerIO):
		return exitLedger
	case errors.Is(err, shared.ErrAction):
		return exitAction
	default:
		return exitFailure
	}
}
