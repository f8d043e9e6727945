// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI replaces the prompts of a one-shot sync script with a multi-view workflow:
//  1. [InputView] : Enter the playlist URL and destination directory
//  2. [LoadingView] : Fetch the playlist and diff it against its ledger
//  3. [PreviewView] : Browse the new items before syncing
//  4. [SyncView] : Monitor real-time progress updates
//  5. [ResultView] : Display processed and skipped items
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the sync Engine, providing non-blocking status reporting during runs.
//
// [RenderSummary] renders the same result view for non-interactive commands.
package ui
