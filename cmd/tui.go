package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/desertthunder/plsync/internal/ui"
)

// runTUI prompts for the playlist and destination, previews the batch and runs the sync interactively.
func (r *Runner) runTUI(ctx context.Context, engine *tasks.Engine, action tasks.Action, opts tasks.Options) error {
	model := ui.NewModel(ctx, r.source, engine, action, opts)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	_, runErr := p.Run()
	// a signal kills the program first; the engine sees the same ctx and still has to persist
	model.Wait()
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", runErr)
	}

	result, err := model.Result()
	if result == nil && err == nil && runErr != nil {
		err = ctx.Err()
	}
	if result != nil || err != nil {
		r.writePlain("%s\n", ui.RenderSummary(result, err))
	}
	return err
}
