package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configured bool
	logger     *log.Logger
	output     io.Writer
	source     services.PlaylistSource
	audio      services.AudioSource
	transcoder services.Transcoder
	fetcher    services.ImageFetcher
	db         *sql.DB
	ownsDB     bool
	runs       *repositories.RunRepository
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Nil services are built from the configuration when a command first needs them.
type RunnerOpts struct {
	Config     *shared.Config
	Logger     *log.Logger
	Output     io.Writer
	Source     services.PlaylistSource
	Audio      services.AudioSource
	Transcoder services.Transcoder
	Fetcher    services.ImageFetcher
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{
		config:     opts.Config,
		configured: opts.Config != nil,
		logger:     opts.Logger,
		output:     opts.Output,
		source:     opts.Source,
		audio:      opts.Audio,
		transcoder: opts.Transcoder,
		fetcher:    opts.Fetcher,
		db:         opts.DB,
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	if r.output == nil {
		r.output = os.Stdout
	}
	if r.db != nil {
		r.runs = repositories.NewRunRepository(r.db)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, ledgerCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before resolves configuration from the --config file, .env and PLSYNC_* variables.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if !r.configured {
		config, err := shared.ResolveConfig(cmd.String("config"))
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.configured = true
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.Logging.Level))
	return ctx, nil
}

// SetLogger replaces the logger, e.g. while a TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the history database if the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db, r.runs = nil, nil
	return err
}

// youtube builds the default YouTube-backed sources unless they were injected.
func (r *Runner) youtube() {
	if r.source != nil && r.audio != nil {
		return
	}
	yt := services.NewYouTubeService(r.config.YouTube.Timeout, r.logger)
	if r.source == nil {
		r.source = yt
	}
	if r.audio == nil {
		r.audio = yt
	}
}

// history returns the run repository, opening the configured database on first use.
func (r *Runner) history() (*repositories.RunRepository, error) {
	if r.runs != nil {
		return r.runs, nil
	}
	if !r.config.Database.Enabled {
		return nil, fmt.Errorf("%w: run history is disabled (database.enabled = false)", shared.ErrServiceUnavailable)
	}

	db, err := shared.OpenHistory(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}
	r.db, r.ownsDB = db, true
	r.runs = repositories.NewRunRepository(db)
	return r.runs, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
