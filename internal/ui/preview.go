package ui

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/desertthunder/plsync/internal/ledger"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
)

// Preview is the batch a sync would process right now.
type Preview struct {
	Playlist   *models.Playlist
	LedgerPath string
	Known      int
	Items      []models.Item
}

// LoadPreview fetches the playlist and diffs it against its ledger without creating or changing any file.
func LoadPreview(ctx context.Context, source services.PlaylistSource, opts tasks.Options) (*Preview, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, shared.ErrServiceUnavailable
	}

	pl, err := source.FetchPlaylist(ctx, opts.PlaylistURL)
	if err != nil {
		return nil, err
	}

	p := &Preview{Playlist: pl, LedgerPath: shared.LedgerPath(opts.DestinationDir, pl.Title, opts.LedgerExt)}

	var l *ledger.Ledger
	if _, err := os.Stat(p.LedgerPath); err == nil {
		if l, err = ledger.Load(p.LedgerPath, ledger.Options{Header: opts.LedgerHeader}); err != nil {
			return nil, err
		}
		p.Known = l.Len()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	p.Items = ledger.Diff(pl.Items, l)
	return p, nil
}
