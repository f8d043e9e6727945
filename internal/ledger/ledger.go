// Package ledger persists the append-only record of playlist items that have already been processed.
//
// A ledger is a UTF-8 CSV file with an optional "Title,URL" header and one row per item.
// Rows are only ever appended; identity is the URL column.
package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// Header is the column layout written to new ledgers.
var Header = []string{"Title", "URL"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options controls how a missing ledger is created.
type Options struct {
	Header bool
}

// Entry is one ledger row.
type Entry struct {
	Title string `json:"title"`
	ID    string `json:"url"`
}

// Ledger is an in-memory view of a ledger file.
type Ledger struct {
	path    string
	entries []Entry
	ids     map[string]struct{}
}

// Load reads the ledger at path, creating it (and its directory) when absent.
//
// Malformed rows are errors, never dropped: a row with a missing column, an empty URL or a
// duplicate URL fails with [shared.ErrLedgerIO]. A title-only ledger fails with [shared.ErrLegacyLedger].
func Load(path string, opts Options) (*Ledger, error) {
	l := &Ledger{path: path, ids: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := create(path, opts.Header); err != nil {
			return nil, err
		}
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("%w: failed to read %s: %v", shared.ErrLedgerIO, path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		if opts.Header {
			if err := writeRows(path, os.O_WRONLY|os.O_TRUNC, [][]string{Header}); err != nil {
				return nil, err
			}
		}
		return l, nil
	}

	rows, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrLedgerIO, path, err)
	}

	for n, row := range rows {
		line := n + 1
		if n == 0 && isHeader(row) {
			continue
		}
		if len(row) == 1 {
			return nil, fmt.Errorf("%w: %s line %d has a single column, run `plsync ledger migrate`", shared.ErrLegacyLedger, path, line)
		}
		if len(row) != 2 {
			return nil, fmt.Errorf("%w: %s line %d: expected 2 columns, got %d", shared.ErrLedgerIO, path, line, len(row))
		}

		entry := Entry{Title: row[0], ID: strings.TrimSpace(row[1])}
		if entry.ID == "" {
			return nil, fmt.Errorf("%w: %s line %d: empty URL for %q", shared.ErrLedgerIO, path, line, shared.SanitizeDisplayName(entry.Title))
		}
		if l.Contains(entry.ID) {
			return nil, fmt.Errorf("%w: %s line %d: duplicate URL %s", shared.ErrLedgerIO, path, line, entry.ID)
		}
		l.add(entry)
	}
	return l, nil
}

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }

// Len returns the number of recorded items.
func (l *Ledger) Len() int { return len(l.entries) }

// Contains reports whether id has been recorded.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// Entries returns a copy of the rows in file order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) add(e Entry) {
	l.entries = append(l.entries, e)
	l.ids[e.ID] = struct{}{}
}

// Append records items that are not yet in the ledger.
//
// Rows are written in append mode, flushed and synced before returning, so an interrupted run
// leaves a valid prefix. Existing rows are never rewritten.
func (l *Ledger) Append(items ...models.Item) error {
	var (
		rows  [][]string
		added []Entry
		seen  = make(map[string]struct{})
	)
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrLedgerIO, err)
		}
		if _, dup := seen[item.ID]; dup || l.Contains(item.ID) {
			continue
		}
		seen[item.ID] = struct{}{}
		rows = append(rows, []string{item.Title, item.ID})
		added = append(added, Entry{Title: item.Title, ID: item.ID})
	}
	if len(rows) == 0 {
		return nil
	}

	if err := writeRows(l.path, os.O_WRONLY|os.O_APPEND, rows); err != nil {
		return err
	}
	for _, e := range added {
		l.add(e)
	}
	return nil
}

// Diff returns the items of current whose ID is not in l, in current order.
// An ID repeated within current is returned once.
func Diff(current []models.Item, l *Ledger) []models.Item {
	var (
		out  []models.Item
		seen = make(map[string]struct{}, len(current))
	)
	for _, item := range current {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		if l != nil && l.Contains(item.ID) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func create(path string, header bool) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: failed to create %s: %v", shared.ErrLedgerIO, dir, err)
		}
	}

	var rows [][]string
	if header {
		rows = append(rows, Header)
	}
	return writeRows(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, rows)
}

// writeRows opens path with flag, writes rows and syncs. In append mode a missing
// trailing newline is restored first so a hand-edited file cannot merge two rows.
func writeRows(path string, flag int, rows [][]string) error {
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", shared.ErrLedgerIO, path, err)
	}
	defer f.Close()

	if flag&os.O_APPEND != 0 {
		if err := terminateLastLine(f, path); err != nil {
			return err
		}
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", shared.ErrLedgerIO, path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: failed to sync %s: %v", shared.ErrLedgerIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: failed to close %s: %v", shared.ErrLedgerIO, path, err)
	}
	return nil
}

func terminateLastLine(f *os.File, path string) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: failed to stat %s: %v", shared.ErrLedgerIO, path, err)
	}
	if info.Size() == 0 {
		return nil
	}

	r, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", shared.ErrLedgerIO, path, err)
	}
	defer r.Close()

	last := make([]byte, 1)
	if _, err := r.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
		return fmt.Errorf("%w: failed to read %s: %v", shared.ErrLedgerIO, path, err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", shared.ErrLedgerIO, path, err)
	}
	return nil
}

func parse(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func isHeader(row []string) bool {
	if len(row) == 0 || !strings.EqualFold(strings.TrimSpace(row[0]), Header[0]) {
		return false
	}
	return len(row) == 1 || strings.EqualFold(strings.TrimSpace(row[1]), Header[1])
}
