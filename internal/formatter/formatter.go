// package formatter renders ledgers for display and writes the thumbnail spreadsheet
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/plsync/internal/ledger"
	"github.com/desertthunder/plsync/internal/shared"
)

// Export formats accepted by [ExportLedger].
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatCSV      = "csv"
)

// Formats lists the supported export formats.
var Formats = []string{FormatText, FormatMarkdown, FormatJSON, FormatCSV}

// ExportToCSV renders entries with a Title,URL header.
func ExportToCSV(entries []ledger.Entry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(ledger.Header); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, e := range entries {
		if err := writer.Write([]string{e.Title, e.ID}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders entries as a numbered list of links under the ledger's name.
func ExportToMarkdown(name string, entries []ledger.Entry) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", name)
	fmt.Fprintf(&buf, "**Items**: %d\n\n", len(entries))
	for i, e := range entries {
		title := strings.NewReplacer("[", `\[`, "]", `\]`).Replace(e.Title)
		fmt.Fprintf(&buf, "%d. [%s](%s)\n", i+1, title, e.ID)
	}
	return buf.Bytes(), nil
}

// ExportToText renders entries as plain numbered lines.
func ExportToText(name string, entries []ledger.Entry) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Ledger: %s\n", name)
	fmt.Fprintf(&buf, "Items: %d\n\n", len(entries))
	for i, e := range entries {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, shared.SanitizeDisplayName(e.Title), e.ID)
	}
	return buf.Bytes(), nil
}

// ExportToJSON renders entries as an indented JSON document.
func ExportToJSON(name string, entries []ledger.Entry) ([]byte, error) {
	if entries == nil {
		entries = []ledger.Entry{}
	}
	doc := struct {
		Name  string         `json:"name"`
		Count int            `json:"count"`
		Items []ledger.Entry `json:"items"`
	}{name, len(entries), entries}
	return shared.MarshalJSON(doc, true)
}

// ExportLedger renders entries in format.
func ExportLedger(name string, entries []ledger.Entry, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatText, "":
		return ExportToText(name, entries)
	case FormatMarkdown, "md":
		return ExportToMarkdown(name, entries)
	case FormatJSON:
		return ExportToJSON(name, entries)
	case FormatCSV:
		return ExportToCSV(entries)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q (use %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// WriteExport renders entries and writes them to path.
func WriteExport(name string, entries []ledger.Entry, format, path string) error {
	data, err := ExportLedger(name, entries, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
