package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// LegacySuffix is appended to the path of a migrated title-only ledger.
const LegacySuffix = ".legacy"

var rename = os.Rename

// MigrateResult summarizes a legacy ledger conversion.
type MigrateResult struct {
	Path       string   `json:"path"`
	BackupPath string   `json:"backup_path"`
	Matched    []Entry  `json:"matched"`
	Unmatched  []string `json:"unmatched"`
}

// Migrate converts a title-only ledger at path into the Title,URL layout.
//
// Each legacy title is matched against playlist in order; the first unused item with an
// equal title wins, so repeated titles map to distinct items. Unmatched titles are reported
// and left out. The legacy file is kept at path+[LegacySuffix] and the new file replaces
// it with a rename.
func Migrate(path string, playlist *models.Playlist) (*MigrateResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", shared.ErrLedgerIO, path, err)
	}
	rows, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrLedgerIO, path, err)
	}

	var titles []string
	for n, row := range rows {
		if n == 0 && isHeader(row) {
			if len(row) > 1 {
				return nil, fmt.Errorf("%w: %s is not a legacy ledger", shared.ErrInvalidInput, path)
			}
			continue
		}
		if len(row) != 1 {
			return nil, fmt.Errorf("%w: %s line %d is not a legacy title-only row", shared.ErrInvalidInput, path, n+1)
		}
		titles = append(titles, row[0])
	}

	byTitle := make(map[string][]models.Item)
	for _, item := range playlist.Items {
		byTitle[item.Title] = append(byTitle[item.Title], item)
	}

	res := &MigrateResult{Path: path, BackupPath: path + LegacySuffix}
	out := [][]string{Header}
	for _, title := range titles {
		candidates := byTitle[title]
		if len(candidates) == 0 {
			res.Unmatched = append(res.Unmatched, title)
			continue
		}
		item := candidates[0]
		byTitle[title] = candidates[1:]
		res.Matched = append(res.Matched, Entry{Title: item.Title, ID: item.ID})
		out = append(out, []string{item.Title, item.ID})
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ledger-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create temp file: %v", shared.ErrLedgerIO, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := writeRows(tmpPath, os.O_WRONLY|os.O_TRUNC, out); err != nil {
		return nil, err
	}
	if err := rename(path, res.BackupPath); err != nil {
		return nil, fmt.Errorf("%w: failed to back up %s: %v", shared.ErrLedgerIO, path, err)
	}
	if err := rename(tmpPath, path); err != nil {
		// path must never be left missing, or the next sync starts an empty ledger
		if rerr := rename(res.BackupPath, path); rerr != nil {
			return nil, fmt.Errorf("%w: failed to replace %s: %v (legacy ledger left at %s: %v)",
				shared.ErrLedgerIO, path, err, res.BackupPath, rerr)
		}
		return nil, fmt.Errorf("%w: failed to replace %s: %v", shared.ErrLedgerIO, path, err)
	}
	return res, nil
}
