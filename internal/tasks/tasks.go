// package tasks implements the ledger-synced batch processor.
//
// The core abstraction is [Engine], which diffs a playlist against its ledger and applies an [Action]
// to each new item. Runs emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/plsync/internal/ledger"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/retry"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

const defaultLedgerExt = ".csv"

// Options configures one run. It replaces the interactive prompts of a script with explicit input.
type Options struct {
	PlaylistURL    string
	DestinationDir string
	Retry          retry.Policy
	ItemDelay      time.Duration // minimum spacing between item actions
	AppendMode     string        // shared.AppendPerItem or shared.AppendBatch
	OnFailure      string        // shared.OnFailureSkip or shared.OnFailureAbort
	LedgerHeader   bool
	LedgerExt      string
}

// OptionsFromConfig builds run options from the [sync] config section.
func OptionsFromConfig(cfg shared.SyncConfig, playlistURL, destDir string) Options {
	delay := retry.Constant(cfg.RetryDelay)
	if cfg.Backoff == shared.BackoffExponential {
		delay = retry.Exponential(cfg.RetryDelay, cfg.MaxRetryDelay, 2)
	}
	return Options{
		PlaylistURL:    playlistURL,
		DestinationDir: destDir,
		Retry:          retry.Policy{Attempts: cfg.RetryCount, Delay: delay},
		ItemDelay:      cfg.ItemDelay,
		AppendMode:     cfg.AppendMode,
		OnFailure:      cfg.OnFailure,
		LedgerHeader:   cfg.LedgerHeader,
		LedgerExt:      defaultLedgerExt,
	}
}

// Validate fills defaults and rejects unusable options.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.PlaylistURL) == "" {
		return fmt.Errorf("%w: playlist URL", shared.ErrMissingArgument)
	}
	if strings.TrimSpace(o.DestinationDir) == "" {
		return fmt.Errorf("%w: destination directory", shared.ErrMissingArgument)
	}
	if o.AppendMode == "" {
		o.AppendMode = shared.AppendPerItem
	}
	if o.OnFailure == "" {
		o.OnFailure = shared.OnFailureSkip
	}
	if o.LedgerExt == "" {
		o.LedgerExt = defaultLedgerExt
	}
	if o.AppendMode != shared.AppendPerItem && o.AppendMode != shared.AppendBatch {
		return fmt.Errorf("%w: append mode %q", shared.ErrInvalidArgument, o.AppendMode)
	}
	if o.OnFailure != shared.OnFailureSkip && o.OnFailure != shared.OnFailureAbort {
		return fmt.Errorf("%w: failure policy %q", shared.ErrInvalidArgument, o.OnFailure)
	}
	if o.ItemDelay < 0 {
		return fmt.Errorf("%w: item delay must not be negative", shared.ErrInvalidArgument)
	}
	return nil
}

// BatchContext describes the work an [Action] is about to receive.
type BatchContext struct {
	Playlist       *models.Playlist
	Items          []models.Item
	LedgerPath     string
	DestinationDir string
	StartedAt      time.Time
}

// Action is the side effect applied to every new playlist item.
//
// Prepare is only called when the batch is non-empty. Finish is called once after Prepare
// succeeded, whatever happened to the items.
type Action interface {
	Name() string
	Prepare(ctx context.Context, batch BatchContext) error
	Apply(ctx context.Context, item models.Item) error
	Finish(ctx context.Context) error
}

// ItemFailure is an item that exhausted its retries.
type ItemFailure struct {
	Item     models.Item
	Attempts int
	Err      error
}

// RunResult summarizes a run.
type RunResult struct {
	RunID      string
	Playlist   *models.Playlist
	LedgerPath string
	Known      int           // ledger size before the run
	Discovered int           // new items found by the diff
	Processed  []models.Item // items whose action succeeded, in order
	Failed     []ItemFailure // items skipped after exhausting retries
	Aborted    bool          // the batch stopped before its last item
}

// Status maps the result onto a run history status.
func (r *RunResult) Status() models.RunStatus {
	switch {
	case r.Aborted:
		return models.RunStatusAborted
	case len(r.Failed) > 0:
		return models.RunStatusPartial
	default:
		return models.RunStatusCompleted
	}
}

// RunRecorder persists run history. Recorder errors are logged and never fail a run.
type RunRecorder interface {
	Start(ctx context.Context, run *models.Run) error
	RecordFailure(ctx context.Context, failure *models.Failure) error
	Finish(ctx context.Context, run *models.Run) error
}

// Engine runs actions over the new items of a playlist.
type Engine struct {
	source   services.PlaylistSource
	recorder RunRecorder
	logger   *log.Logger
	now      func() time.Time
}

// NewEngine creates an Engine reading playlists from source.
func NewEngine(source services.PlaylistSource, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{source: source, logger: logger, now: time.Now}
}

// SetRecorder enables run history.
func (e *Engine) SetRecorder(r RunRecorder) {
	e.recorder = r
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs one incremental sync:
//
//  1. fetch the playlist and resolve the ledger path from its sanitized title
//  2. load (or create) the ledger
//  3. diff the playlist against the ledger by item ID
//  4. stop early when there is nothing new
//  5. apply the action to each new item in playlist order, with retry
//  6. append successes to the ledger per item or once after the batch
//
// A fetch failure ([shared.ErrFetch]) or ledger failure ([shared.ErrLedgerIO]) aborts the run without
// touching the ledger. With the abort policy, the first exhausted item stops the batch and Run returns
// an [shared.ErrAction] error after persisting the successes so far.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts Options, action Action) (*RunResult, error) {
	if action == nil {
		return nil, fmt.Errorf("%w: no action", shared.ErrInvalidArgument)
	}
	if e.source == nil {
		return nil, fmt.Errorf("%w: playlist source not initialized", shared.ErrServiceUnavailable)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := e.logger.With("mode", action.Name())
	result := &RunResult{}
	run := &models.Run{
		ID:          shared.GenerateID(),
		Mode:        action.Name(),
		PlaylistURL: opts.PlaylistURL,
		Status:      models.RunStatusRunning,
		StartedAt:   e.now().UTC(),
	}
	result.RunID = run.ID
	e.startRun(ctx, logger, run)

	err := e.run(ctx, progress, logger, opts, action, result)
	e.finishRun(ctx, logger, run, result, err)
	if err != nil {
		return result, err
	}

	e.sendProgress(progress, completeUpdate(result))
	logger.Info("run complete", "processed", len(result.Processed), "failed", len(result.Failed), "ledger", result.LedgerPath)
	return result, nil
}

func (e *Engine) run(ctx context.Context, progress chan<- ProgressUpdate, logger *log.Logger, opts Options, action Action, result *RunResult) error {
	e.sendProgress(progress, fetchingPlaylistUpdate(opts.PlaylistURL))
	playlist, err := e.source.FetchPlaylist(ctx, opts.PlaylistURL)
	if err != nil {
		if !errors.Is(err, shared.ErrFetch) {
			err = fmt.Errorf("%w: %w", shared.ErrFetch, err)
		}
		logger.Error("failed to fetch playlist", "url", opts.PlaylistURL, "error", err)
		return err
	}
	result.Playlist = playlist
	e.sendProgress(progress, foundPlaylistUpdate(playlist))

	result.LedgerPath = shared.LedgerPath(opts.DestinationDir, playlist.Title, opts.LedgerExt)
	l, err := ledger.Load(result.LedgerPath, ledger.Options{Header: opts.LedgerHeader})
	if err != nil {
		logger.Error("failed to load ledger", "path", result.LedgerPath, "error", err)
		return err
	}
	result.Known = l.Len()
	e.sendProgress(progress, loadedLedgerUpdate(result.LedgerPath, l.Len()))

	batch := ledger.Diff(playlist.Items, l)
	result.Discovered = len(batch)
	e.sendProgress(progress, batchUpdate(batch))
	if len(batch) == 0 {
		logger.Info("nothing to do", "playlist", shared.SanitizeDisplayName(playlist.Title), "known", l.Len())
		return nil
	}
	logger.Info("processing new items", "playlist", shared.SanitizeDisplayName(playlist.Title), "new", len(batch), "known", l.Len())

	bc := BatchContext{
		Playlist:       playlist,
		Items:          batch,
		LedgerPath:     result.LedgerPath,
		DestinationDir: opts.DestinationDir,
		StartedAt:      e.now(),
	}
	if err := action.Prepare(ctx, bc); err != nil {
		logger.Error("failed to prepare action", "error", err)
		return fmt.Errorf("%w: prepare %s: %w", shared.ErrAction, action.Name(), err)
	}

	batchErr := e.processBatch(ctx, progress, logger, opts, action, l, batch, result)
	if err := action.Finish(ctx); err != nil {
		logger.Error("failed to finish action", "error", err)
		if batchErr == nil {
			batchErr = fmt.Errorf("%w: finish %s: %w", shared.ErrAction, action.Name(), err)
		}
	}
	return batchErr
}

func (e *Engine) processBatch(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	logger *log.Logger,
	opts Options,
	action Action,
	l *ledger.Ledger,
	batch []models.Item,
	result *RunResult,
) error {
	limit := rate.Inf
	if opts.ItemDelay > 0 {
		limit = rate.Every(opts.ItemDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		staged  []models.Item
		loopErr error
	)
	total := len(batch)

	for i, item := range batch {
		step := i + 1
		name := shared.SanitizeDisplayName(item.Title)

		if err := limiter.Wait(ctx); err != nil {
			result.Aborted = true
			loopErr = err
			break
		}
		e.sendProgress(progress, processItemUpdate(step, total, item))

		attempts := 0
		err := retry.Do(ctx, opts.Retry, func(ctx context.Context, attempt int) error {
			attempts = attempt
			return action.Apply(ctx, item)
		}, func(attempt int, err error, next time.Duration) {
			logger.Warn("attempt failed", "item", name, "attempt", attempt, "error", err, "retry_in", next)
			e.sendProgress(progress, retryItemUpdate(step, total, item, attempt, err))
		})

		if err == nil {
			result.Processed = append(result.Processed, item)
			logger.Info("processed", "item", name)
			if opts.AppendMode == shared.AppendBatch {
				staged = append(staged, item)
				continue
			}
			if err := l.Append(item); err != nil {
				logger.Error("failed to append to ledger", "item", name, "error", err)
				return err
			}
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			logger.Warn("run cancelled", "item", name)
			result.Aborted = true
			loopErr = err
			break
		}

		failure := ItemFailure{Item: item, Attempts: attempts, Err: err}
		result.Failed = append(result.Failed, failure)
		e.sendProgress(progress, skipItemUpdate(step, total, failure))
		e.recordFailure(ctx, logger, result.RunID, failure)

		if opts.OnFailure == shared.OnFailureAbort {
			logger.Error("aborting batch", "item", name, "attempts", attempts, "error", err)
			result.Aborted = true
			loopErr = fmt.Errorf("%w: %s: %w", shared.ErrAction, name, err)
			break
		}
		logger.Error("skipping item", "item", name, "attempts", attempts, "error", err)
	}

	if len(staged) > 0 {
		if err := l.Append(staged...); err != nil {
			logger.Error("failed to append to ledger", "items", len(staged), "error", err)
			return err
		}
		e.sendProgress(progress, persistLedgerUpdate(len(staged), l.Path()))
	}
	return loopErr
}

func (e *Engine) startRun(ctx context.Context, logger *log.Logger, run *models.Run) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Start(ctx, run); err != nil {
		logger.Warn("failed to record run start", "error", err)
	}
}

func (e *Engine) recordFailure(ctx context.Context, logger *log.Logger, runID string, f ItemFailure) {
	if e.recorder == nil {
		return
	}
	failure := &models.Failure{
		ID:        shared.GenerateID(),
		RunID:     runID,
		ItemID:    f.Item.ID,
		Title:     f.Item.Title,
		Attempts:  f.Attempts,
		Error:     f.Err.Error(),
		CreatedAt: e.now().UTC(),
	}
	if err := e.recorder.RecordFailure(ctx, failure); err != nil {
		logger.Warn("failed to record item failure", "error", err)
	}
}

func (e *Engine) finishRun(ctx context.Context, logger *log.Logger, run *models.Run, result *RunResult, runErr error) {
	if e.recorder == nil {
		return
	}

	finished := e.now().UTC()
	run.FinishedAt = &finished
	run.LedgerPath = result.LedgerPath
	run.Discovered = result.Discovered
	run.Processed = len(result.Processed)
	run.Failed = len(result.Failed)
	if result.Playlist != nil {
		run.PlaylistTitle = result.Playlist.Title
	}

	run.Status = result.Status()
	if runErr != nil {
		run.Error = runErr.Error()
		if !result.Aborted {
			run.Status = models.RunStatusFailed
		}
	}

	// History must be written even when ctx was cancelled mid-run.
	if err := e.recorder.Finish(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("failed to record run finish", "error", err)
	}
}
