package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Sync errors
	ErrFetch        = fmt.Errorf("playlist fetch failed")
	ErrAction       = fmt.Errorf("item action failed")
	ErrLedgerIO     = fmt.Errorf("ledger I/O failed")
	ErrLegacyLedger = fmt.Errorf("%w: legacy title-only ledger", ErrLedgerIO)
	ErrNoAudio      = fmt.Errorf("no audio stream available")

	// Database errors
	ErrRecordNotFound = fmt.Errorf("record not found")

	// API and service errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
