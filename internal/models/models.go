// package models defines the data model for playlist sync runs
package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return watchURLPrefix + videoID
}

// VideoIDFromURL extracts the v= parameter of a watch URL. Any other string is returned unchanged.
func VideoIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	if strings.HasSuffix(u.Host, "youtu.be") {
		return strings.TrimPrefix(u.Path, "/")
	}
	return raw
}

// Item is one playlist entry.
type Item struct {
	ID           string        `json:"id"` // canonical watch URL; the only identity key
	VideoID      string        `json:"video_id"`
	Title        string        `json:"title"`
	ThumbnailURL string        `json:"thumbnail_url,omitempty"`
	Author       string        `json:"author,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Index        int           `json:"index"`
}

// NewItem builds an Item whose ID is derived from videoID.
func NewItem(videoID, title string) Item {
	return Item{ID: WatchURL(videoID), VideoID: videoID, Title: title}
}

// Validate checks that the item can be recorded in a ledger.
func (i Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("item %q has no id", i.Title)
	}
	return nil
}

// Playlist is playlist metadata plus its entries, ordered as the source returned them.
type Playlist struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	URL    string `json:"url"`
	Items  []Item `json:"items"`
}

// RunStatus is the terminal (or current) state of a [Run].
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial" // finished with skipped items
	RunStatusAborted   RunStatus = "aborted"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one sync invocation recorded in run history.
type Run struct {
	ID            string     `json:"id"`
	Sequence      int64      `json:"sequence"`
	Mode          string     `json:"mode"`
	PlaylistURL   string     `json:"playlist_url"`
	PlaylistTitle string     `json:"playlist_title"`
	LedgerPath    string     `json:"ledger_path"`
	Discovered    int        `json:"discovered"`
	Processed     int        `json:"processed"`
	Failed        int        `json:"failed"`
	Status        RunStatus  `json:"status"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Duration reports how long the run took, or zero while it is still running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failure is an item that exhausted its retries during a run.
type Failure struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	ItemID    string    `json:"item_id"`
	Title     string    `json:"title"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields run history requires.
func (r *Run) Validate() error {
	if strings.TrimSpace(r.Mode) == "" {
		return fmt.Errorf("run has no mode")
	}
	if strings.TrimSpace(r.PlaylistURL) == "" {
		return fmt.Errorf("run has no playlist url")
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("run has no start time")
	}
	return nil
}
