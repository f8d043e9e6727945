package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
)

// RenderSummary renders a run result. err is the error returned alongside res, if any.
func RenderSummary(res *tasks.RunResult, err error) string {
	if res == nil || res.Playlist == nil {
		if err == nil {
			return styles.err.Render("No result available")
		}
		return styles.err.Render(fmt.Sprintf("✗ Sync failed: %v", err))
	}

	var title string
	switch {
	case res.Aborted:
		title = styles.err.Render("✗ Sync aborted")
	case err != nil:
		title = styles.err.Render("✗ Sync failed")
	case len(res.Failed) > 0:
		title = styles.warn.Render("! Sync finished with skipped items")
	case res.Discovered == 0:
		title = styles.ok.Render("✓ Nothing to do: playlist is up to date")
	default:
		title = styles.ok.Render("✓ Sync complete")
	}

	var b strings.Builder
	b.WriteString(title)
	fmt.Fprintf(&b, "\n\nPlaylist: %s (%d items)", shared.SanitizeDisplayName(res.Playlist.Title), len(res.Playlist.Items))
	fmt.Fprintf(&b, "\nLedger: %s", res.LedgerPath)
	fmt.Fprintf(&b, "\nNew: %d  Processed: %d  Skipped: %d", res.Discovered, len(res.Processed), len(res.Failed))

	if len(res.Failed) > 0 {
		b.WriteString("\n\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("Skipped %d items (retried next run):", len(res.Failed))))
		for _, f := range res.Failed {
			fmt.Fprintf(&b, "\n  • %s (%d attempts): %v", shared.SanitizeDisplayName(f.Item.Title), f.Attempts, f.Err)
		}
	}
	if err != nil {
		b.WriteString("\n\n")
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", err)))
	}
	return b.String()
}
