package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/desertthunder/plsync/internal/ui"
)

// Sync runs one incremental sync of the playlist with the action named by mode.
//
// Without --url and --dest (or with --interactive) the TUI prompts for them.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command, mode string) error {
	opts, err := r.syncOptions(cmd)
	if err != nil {
		return err
	}

	interactive := cmd.Bool("interactive") || opts.PlaylistURL == "" || opts.DestinationDir == ""
	if interactive {
		fileLogger, err := shared.NewFileLogger("./tmp/plsync-tui.log")
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		fileLogger.SetLevel(r.logger.GetLevel())
		r.SetLogger(fileLogger)
	}

	r.youtube()
	action, err := r.newAction(mode)
	if err != nil {
		return err
	}

	engine := tasks.NewEngine(r.source, r.logger)
	if runs, err := r.history(); err != nil {
		r.logger.Warn("run history unavailable", "error", err)
	} else {
		engine.SetRecorder(repositories.NewHistoryRecorder(runs))
	}

	if interactive {
		return r.runTUI(ctx, engine, action, opts)
	}

	r.logger.Info("starting sync", "mode", mode, "url", opts.PlaylistURL, "dest", opts.DestinationDir)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchPlaylist, tasks.LoadLedger, tasks.ComputeBatch, tasks.PersistLedger:
				r.writePlain("%s\n", update.Message)
			case tasks.ProcessItem, tasks.RetryItem, tasks.SkipItem:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	result, err := engine.Run(ctx, progressCh, opts, action)
	close(progressCh)
	<-done

	r.writePlain("\n%s\n", ui.RenderSummary(result, err))
	return err
}

// syncOptions layers sync flags over the [sync] config section.
func (r *Runner) syncOptions(cmd *cli.Command) (tasks.Options, error) {
	cfg := r.config.Sync
	if cmd.IsSet("retries") {
		if n := cmd.Int("retries"); n < 1 {
			return tasks.Options{}, fmt.Errorf("%w: --retries must be at least 1, got %d", shared.ErrInvalidArgument, n)
		}
		cfg.RetryCount = int(cmd.Int("retries"))
	}
	if cmd.IsSet("retry-delay") {
		cfg.RetryDelay = cmd.Duration("retry-delay")
	}
	if cmd.IsSet("item-delay") {
		cfg.ItemDelay = cmd.Duration("item-delay")
	}
	if cmd.IsSet("append-mode") {
		cfg.AppendMode = strings.ToLower(cmd.String("append-mode"))
	}
	if cmd.IsSet("on-failure") {
		cfg.OnFailure = strings.ToLower(cmd.String("on-failure"))
	}

	opts := tasks.OptionsFromConfig(cfg, strings.TrimSpace(cmd.String("url")), strings.TrimSpace(cmd.String("dest")))
	if opts.PlaylistURL == "" || opts.DestinationDir == "" {
		return opts, nil
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// newAction builds the action for mode from the runner's services.
func (r *Runner) newAction(mode string) (tasks.Action, error) {
	switch mode {
	case tasks.ModeAudio:
		if r.transcoder == nil {
			r.transcoder = services.NewFFmpeg(r.config.Audio.Encoder, r.config.Audio.Bitrate)
		}
		if c, ok := r.transcoder.(interface{ Check() error }); ok {
			if err := c.Check(); err != nil {
				return nil, err
			}
		}
		return tasks.NewAudioAction(r.audio, r.transcoder, r.config.Audio.FolderLayout, r.logger), nil
	case tasks.ModeSheet:
		if r.fetcher == nil {
			r.fetcher = services.NewThumbnailFetcher(r.config.YouTube.Timeout)
		}
		return tasks.NewSheetAction(r.fetcher, r.logger), nil
	case tasks.ModeList:
		return tasks.NewListAction(r.logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", shared.ErrInvalidArgument, mode)
	}
}
