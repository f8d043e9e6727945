package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/ledger"
	"github.com/desertthunder/plsync/internal/shared"
)

// LedgerShow prints the entries of an existing ledger.
func (r *Runner) LedgerShow(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	format := cmd.String("format")
	output := cmd.String("output")

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: no ledger at %s", shared.ErrInvalidArgument, path)
	}

	l, err := ledger.Load(path, ledger.Options{Header: r.config.Sync.LedgerHeader})
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	r.logger.Debug("showing ledger", "path", path, "entries", l.Len(), "format", format)

	if output != "" {
		if err := formatter.WriteExport(name, l.Entries(), format, output); err != nil {
			return err
		}
		r.writePlain("✓ Exported %d entries to %s\n", l.Len(), output)
		return nil
	}

	data, err := formatter.ExportLedger(name, l.Entries(), format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// LedgerMigrate converts a title-only ledger by matching its titles against the current playlist.
func (r *Runner) LedgerMigrate(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	url := cmd.String("url")

	r.youtube()
	playlist, err := r.source.FetchPlaylist(ctx, url)
	if err != nil {
		return err
	}

	r.logger.Info("migrating ledger", "path", path, "playlist", shared.SanitizeDisplayName(playlist.Title))
	res, err := ledger.Migrate(path, playlist)
	if err != nil {
		return err
	}

	r.writePlainHeader("Ledger migrated")
	r.writePlain("Ledger: %s\n", res.Path)
	r.writePlain("Backup: %s\n", res.BackupPath)
	r.writePlain("Matched: %d\n", len(res.Matched))

	if len(res.Unmatched) > 0 {
		r.writePlain("\nNot found in the playlist (dropped, %d):\n", len(res.Unmatched))
		for _, title := range res.Unmatched {
			r.writePlain("  - %s\n", shared.SanitizeDisplayName(title))
		}
	}
	return nil
}
