// submodule cmd contains command definitions
package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/tasks"
)

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Aliases: []string{"u"},
			Usage:   "Playlist URL",
		},
		&cli.StringFlag{
			Name:    "dest",
			Aliases: []string{"d"},
			Usage:   "Destination directory for the ledger and outputs",
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "Attempts per item (overrides sync.retry_count)",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Delay between attempts (overrides sync.retry_delay)",
		},
		&cli.DurationFlag{
			Name:  "item-delay",
			Usage: "Minimum spacing between items (overrides sync.item_delay)",
		},
		&cli.StringFlag{
			Name:  "append-mode",
			Usage: "Ledger append mode: item or batch (overrides sync.append_mode)",
		},
		&cli.StringFlag{
			Name:  "on-failure",
			Usage: "Failure policy: skip or abort (overrides sync.on_failure)",
		},
		&cli.BoolFlag{
			Name:    "interactive",
			Aliases: []string{"i"},
			Usage:   "Prompt for the playlist and destination",
		},
	}
}

// syncCommand runs the ledger-synced batch processor with one action per subcommand.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Process playlist items not yet recorded in the ledger",
		Commands: []*cli.Command{
			{
				Name:  tasks.ModeAudio,
				Usage: "Download new items as MP3 into a dated folder",
				Flags: syncFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return r.Sync(ctx, cmd, tasks.ModeAudio)
				},
			},
			{
				Name:    tasks.ModeSheet,
				Aliases: []string{"xlsx"},
				Usage:   "Append new items with thumbnails to an XLSX workbook",
				Flags:   syncFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return r.Sync(ctx, cmd, tasks.ModeSheet)
				},
			},
			{
				Name:  tasks.ModeList,
				Usage: "Record new items in the ledger only",
				Flags: syncFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return r.Sync(ctx, cmd, tasks.ModeList)
				},
			},
		},
	}
}

// ledgerCommand inspects and converts ledger files.
func ledgerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Inspect and migrate ledgers",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print a ledger's entries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "path",
						Aliases:  []string{"p"},
						Usage:    "Ledger file",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, markdown, json, csv)",
						Value:   formatter.FormatText,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.LedgerShow,
			},
			{
				Name:  "migrate",
				Usage: "Convert a title-only ledger to Title,URL by matching titles against the playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "path",
						Aliases:  []string{"p"},
						Usage:    "Legacy ledger file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "url",
						Aliases:  []string{"u"},
						Usage:    "Playlist URL the ledger was built from",
						Required: true,
					},
				},
				Action: r.LedgerMigrate,
			},
		},
	}
}

// historyCommand reads the run history database.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded sync runs",
		Commands: []*cli.Command{
			{
				Name:  "runs",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to return",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Only runs of this playlist URL",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryRuns,
			},
			{
				Name:  "failures",
				Usage: "List items that exhausted their retries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Only failures of this playlist URL",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryFailures,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config file from the built-in template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Where to write the config file",
						Value: "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the run history database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
