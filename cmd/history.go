package main

import (
	"context"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsync/internal/shared"
)

// HistoryRuns lists recent sync runs.
func (r *Runner) HistoryRuns(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.history()
	if err != nil {
		return err
	}

	runs, err := repo.List(ctx, cmd.String("playlist"), int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	if len(runs) == 0 {
		r.writePlain("No runs recorded\n")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		title := run.PlaylistTitle
		if title == "" {
			title = run.PlaylistURL
		}
		rows = append(rows, []string{
			strconv.FormatInt(run.Sequence, 10),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Mode,
			string(run.Status),
			strconv.Itoa(run.Discovered),
			strconv.Itoa(run.Processed),
			strconv.Itoa(run.Failed),
			shared.SanitizeDisplayName(title),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "STARTED", "MODE", "STATUS", "NEW", "DONE", "FAILED", "PLAYLIST").
		Rows(rows...)
	return r.writePlain("%s\n", t.Render())
}

// HistoryFailures lists items that exhausted their retries.
func (r *Runner) HistoryFailures(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.history()
	if err != nil {
		return err
	}

	failures, err := repo.Failures(ctx, cmd.String("playlist"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(failures, true)
	}
	if len(failures) == 0 {
		r.writePlain("No failures recorded\n")
		return nil
	}

	for _, f := range failures {
		r.writePlain("%s  %s (%d attempts)\n    %s\n    %s\n",
			f.CreatedAt.Local().Format("2006-01-02 15:04"),
			shared.SanitizeDisplayName(f.Title),
			f.Attempts,
			f.ItemID,
			f.Error,
		)
	}
	return nil
}
