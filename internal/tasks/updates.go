package tasks

import (
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylist Phase = iota
	LoadLedger
	ComputeBatch
	ProcessItem
	RetryItem
	SkipItem
	PersistLedger
	Complete
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylist:
		return "fetch_playlist"
	case LoadLedger:
		return "load_ledger"
	case ComputeBatch:
		return "compute_batch"
	case ProcessItem:
		return "process_item"
	case RetryItem:
		return "retry_item"
	case SkipItem:
		return "skip_item"
	case PersistLedger:
		return "persist_ledger"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func fetchingPlaylistUpdate(url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s...", url),
	}
}

func foundPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d items)", shared.SanitizeDisplayName(pl.Title), len(pl.Items)),
		Data:    pl,
	}
}

func loadedLedgerUpdate(path string, known int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadLedger,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Ledger %s has %d item(s)", path, known),
	}
}

func batchUpdate(batch []models.Item) ProgressUpdate {
	msg := fmt.Sprintf("%d new item(s) to process", len(batch))
	if len(batch) == 0 {
		msg = "Nothing to do: playlist is up to date"
	}
	return ProgressUpdate{
		Phase:   ComputeBatch,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    batch,
	}
}

func processItemUpdate(step, total int, item models.Item) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ProcessItem,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, shared.SanitizeDisplayName(item.Title)),
		Data:    item,
	}
}

func retryItemUpdate(step, total int, item models.Item, attempt int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RetryItem,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] attempt %d failed for %s: %v", step, total, attempt, shared.SanitizeDisplayName(item.Title), err),
		Data:    item,
	}
}

func skipItemUpdate(step, total int, f ItemFailure) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipItem,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, shared.SanitizeDisplayName(f.Item.Title), f.Err),
		Data:    f,
	}
}

func persistLedgerUpdate(count int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PersistLedger,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Appended %d item(s) to %s", count, path),
	}
}

func completeUpdate(res *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Processed %d of %d new item(s), %d failed", len(res.Processed), res.Discovered, len(res.Failed)),
		Data:    res,
	}
}
