package shared

import (
	"path/filepath"
	"strings"
	"time"
)

// DefaultFolderLayout names dated output folders like "Mar07_14h".
const DefaultFolderLayout = "Jan02_15h"

var reservedReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	`"`, "_",
	"/", "_",
	`\`, "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// SanitizeDisplayName replaces filesystem-reserved characters (< > : " / \ | ? *) with underscores.
//
// The result is meant for filenames and log lines only; it is never an identity key.
func SanitizeDisplayName(title string) string {
	return reservedReplacer.Replace(title)
}

// LedgerPath returns dir/<sanitized title><ext>, so the same playlist always maps to the same file.
func LedgerPath(dir, playlistTitle, ext string) string {
	name := SanitizeDisplayName(playlistTitle)
	if strings.TrimSpace(name) == "" {
		name = "playlist"
	}
	return filepath.Join(dir, name+ext)
}

// DatedFolder formats t with layout, falling back to [DefaultFolderLayout].
func DatedFolder(t time.Time, layout string) string {
	if layout == "" {
		layout = DefaultFolderLayout
	}
	return SanitizeDisplayName(t.Format(layout))
}
