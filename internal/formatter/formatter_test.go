package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/plsync/internal/ledger"
	"github.com/desertthunder/plsync/internal/shared"
)

var testEntries = []ledger.Entry{
	{Title: "Song, One", ID: "https://www.youtube.com/watch?v=v1"},
	{Title: "Song [Two]", ID: "https://www.youtube.com/watch?v=v2"},
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testEntries)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		want := "Title,URL\n\"Song, One\",https://www.youtube.com/watch?v=v1\nSong [Two],https://www.youtube.com/watch?v=v2\n"
		if string(data) != want {
			t.Errorf("ExportToCSV() = %q, want %q", data, want)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown("Mix", testEntries)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		output := string(data)
		if !strings.HasPrefix(output, "# Mix\n") {
			t.Errorf("Markdown missing heading, got: %s", output)
		}
		if !strings.Contains(output, "**Items**: 2") {
			t.Errorf("Markdown missing count")
		}
		if !strings.Contains(output, `2. [Song \[Two\]](https://www.youtube.com/watch?v=v2)`) {
			t.Errorf("Markdown link not escaped, got: %s", output)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText("Mix", []ledger.Entry{{Title: "A/B", ID: "u"}})
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		if !strings.Contains(string(data), "1. A_B - u") {
			t.Errorf("Text output should use sanitized titles, got: %s", data)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON("Mix", nil)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}
		var doc struct {
			Name  string         `json:"name"`
			Count int            `json:"count"`
			Items []ledger.Entry `json:"items"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if doc.Name != "Mix" || doc.Count != 0 || doc.Items == nil {
			t.Errorf("unexpected document %+v", doc)
		}
		if !strings.Contains(string(data), `"items": []`) {
			t.Errorf("empty ledgers should render an empty array, got %s", data)
		}
	})

	t.Run("ExportLedger", func(t *testing.T) {
		tests := []struct {
			format string
			prefix string
		}{
			{"text", "Ledger: Mix"},
			{"", "Ledger: Mix"},
			{"MARKDOWN", "# Mix"},
			{"md", "# Mix"},
			{"json", "{"},
			{"csv", "Title,URL"},
		}
		for _, tt := range tests {
			data, err := ExportLedger("Mix", testEntries, tt.format)
			if err != nil {
				t.Errorf("ExportLedger(%q) error = %v", tt.format, err)
				continue
			}
			if !strings.HasPrefix(string(data), tt.prefix) {
				t.Errorf("ExportLedger(%q) = %q, want prefix %q", tt.format, data, tt.prefix)
			}
		}

		if _, err := ExportLedger("Mix", testEntries, "yaml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("WriteExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mix.md")
		if err := WriteExport("Mix", testEntries, FormatMarkdown, path); err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), "# Mix") {
			t.Errorf("unexpected file content %q", data)
		}

		if err := WriteExport("Mix", testEntries, FormatText, filepath.Join(t.TempDir(), "missing", "x.txt")); err == nil {
			t.Error("expected error writing into a missing directory")
		}
	})
}
