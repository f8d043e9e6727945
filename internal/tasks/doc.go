// Package tasks runs incremental playlist syncs with real-time progress reporting.
//
// # Core Operation
//
// [Engine.Run] performs one sync:
//   - Fetches the playlist through a [services.PlaylistSource]
//   - Loads (or creates) the ledger named after the sanitized playlist title
//   - Diffs the playlist against the ledger by item ID, keeping playlist order
//   - Applies an [Action] to each new item with a bounded retry policy
//   - Appends successes to the ledger per item or once per batch
//
// Items are processed one at a time and spaced by a rate limiter so third-party services are not hammered.
//
// # Actions
//
//   - [AudioAction] : download the best audio stream and transcode it to MP3 under a dated folder
//   - [SheetAction] : write a Thumbnail/Title/URL row into an XLSX workbook
//   - [ListAction] : record the item in the ledger only
//
// # Failure Policy
//
// An item that exhausts its retries is logged, reported, and left out of the ledger so the next run
// picks it up again. With [shared.OnFailureSkip] the batch continues; with [shared.OnFailureAbort] it
// stops after persisting the successes so far.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Run History
//
// The optional [RunRecorder] interface receives run start, item failures and run completion
// (repositories.HistoryRecorder). Recorder errors are logged and never fail a run.
package tasks
