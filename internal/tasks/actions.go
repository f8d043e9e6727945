package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

// Action names, also used as sync subcommands and run history modes.
const (
	ModeAudio = "audio"
	ModeSheet = "sheet"
	ModeList  = "list"
)

// AudioAction downloads each item's audio and transcodes it to MP3 under a dated folder.
type AudioAction struct {
	source     services.AudioSource
	transcoder services.Transcoder
	layout     string
	logger     *log.Logger

	dir string
	now func() time.Time
}

// NewAudioAction creates an AudioAction. layout names the dated folder (see [shared.DatedFolder]).
func NewAudioAction(source services.AudioSource, transcoder services.Transcoder, layout string, logger *log.Logger) *AudioAction {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AudioAction{source: source, transcoder: transcoder, layout: layout, logger: logger, now: time.Now}
}

func (a *AudioAction) Name() string { return ModeAudio }

// Dir returns the folder files are written to once the batch is prepared.
func (a *AudioAction) Dir() string { return a.dir }

func (a *AudioAction) Prepare(ctx context.Context, batch BatchContext) error {
	if a.source == nil || a.transcoder == nil {
		return fmt.Errorf("%w: audio source or transcoder not initialized", shared.ErrServiceUnavailable)
	}
	a.dir = filepath.Join(batch.DestinationDir, shared.DatedFolder(a.now(), a.layout))
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", a.dir, err)
	}
	a.logger.Info("writing audio", "dir", a.dir)
	return nil
}

// Apply downloads to a temporary file in the output folder, transcodes it, and always removes the
// temporary file.
func (a *AudioAction) Apply(ctx context.Context, item models.Item) error {
	stream, err := a.source.OpenAudio(ctx, item.VideoID)
	if err != nil {
		return err
	}
	defer stream.Close()

	tmp, err := os.CreateTemp(a.dir, ".plsync-*"+services.AudioExtension(stream.MimeType))
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %v", shared.ErrAction, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &contextReader{ctx: ctx, r: stream}); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: download failed: %w", shared.ErrAction, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close temp file: %v", shared.ErrAction, err)
	}

	meta := services.TrackMeta{Title: firstNonEmpty(item.Title, stream.Title, item.VideoID), Artist: firstNonEmpty(stream.Author, item.Author)}
	dst := a.outputPath(item, meta.Title)
	if err := a.transcoder.Transcode(ctx, tmp.Name(), dst, meta); err != nil {
		return err
	}

	a.logger.Debug("wrote audio", "item", shared.SanitizeDisplayName(meta.Title), "path", dst)
	return nil
}

// outputPath returns <dir>/<sanitized title>.mp3, adding the video ID when a different
// item already took that name.
func (a *AudioAction) outputPath(item models.Item, title string) string {
	name := shared.SanitizeDisplayName(title)
	dst := filepath.Join(a.dir, name+".mp3")
	if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		return dst
	}
	return filepath.Join(a.dir, fmt.Sprintf("%s [%s].mp3", name, shared.SanitizeDisplayName(item.VideoID)))
}

func (a *AudioAction) Finish(ctx context.Context) error { return nil }

// SheetAction writes a Thumbnail/Title/URL row per item into an XLSX workbook named after the playlist.
type SheetAction struct {
	fetcher services.ImageFetcher
	logger  *log.Logger

	wb      *formatter.Workbook
	unsaved string
}

// NewSheetAction creates a SheetAction. A nil fetcher writes rows without thumbnails.
func NewSheetAction(fetcher services.ImageFetcher, logger *log.Logger) *SheetAction {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SheetAction{fetcher: fetcher, logger: logger}
}

func (s *SheetAction) Name() string { return ModeSheet }

// Path returns the workbook path once the batch is prepared.
func (s *SheetAction) Path() string {
	if s.wb == nil {
		return ""
	}
	return s.wb.Path()
}

func (s *SheetAction) Prepare(ctx context.Context, batch BatchContext) error {
	path := shared.LedgerPath(batch.DestinationDir, batch.Playlist.Title, ".xlsx")
	wb, err := formatter.OpenWorkbook(path)
	if err != nil {
		return err
	}
	s.wb = wb
	s.logger.Info("writing workbook", "path", path, "rows", wb.Rows())
	return nil
}

// Apply appends the row and saves the workbook so every success is on disk before the ledger
// records it. A row whose save failed is not appended again on retry, and is dropped once a
// different item is applied so a later save cannot write an item the ledger never recorded.
func (s *SheetAction) Apply(ctx context.Context, item models.Item) error {
	if s.unsaved != "" && s.unsaved != item.ID {
		if err := s.wb.DiscardLast(); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAction, err)
		}
		s.logger.Debug("dropped unsaved row", "item", s.unsaved)
		s.unsaved = ""
	}
	if s.unsaved != item.ID {
		image, err := s.thumbnail(ctx, item)
		if err != nil {
			return err
		}
		row := formatter.SheetRow{Title: item.Title, URL: item.ID, Image: image}
		if err := s.wb.AppendRow(row); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAction, err)
		}
		s.unsaved = item.ID
	}

	if err := s.wb.Save(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAction, err)
	}
	s.unsaved = ""
	return nil
}

// thumbnail fetches the item's image. Transport errors are returned so the item is retried;
// a non-200 response or an unsupported format is logged and the row is written without an image.
func (s *SheetAction) thumbnail(ctx context.Context, item models.Item) ([]byte, error) {
	if s.fetcher == nil || item.ThumbnailURL == "" {
		return nil, nil
	}

	name := shared.SanitizeDisplayName(item.Title)
	data, err := s.fetcher.Fetch(ctx, item.ThumbnailURL)
	switch {
	case errors.Is(err, services.ErrUnexpectedStatus):
		s.logger.Warn("thumbnail unavailable", "item", name, "error", err)
		return nil, nil
	case err != nil:
		return nil, err
	}
	if _, ok := formatter.ImageExtension(data); !ok {
		s.logger.Warn("thumbnail format not supported", "item", name)
		return nil, nil
	}
	return data, nil
}

func (s *SheetAction) Finish(ctx context.Context) error {
	if s.wb == nil {
		return nil
	}
	err := s.wb.Close()
	s.wb = nil
	return err
}

// ListAction records items in the ledger without any other side effect; the ledger itself is the listing.
type ListAction struct {
	logger *log.Logger
}

func NewListAction(logger *log.Logger) *ListAction {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ListAction{logger: logger}
}

func (l *ListAction) Name() string { return ModeList }

func (l *ListAction) Prepare(ctx context.Context, batch BatchContext) error { return nil }

func (l *ListAction) Apply(ctx context.Context, item models.Item) error {
	l.logger.Info("listed", "item", shared.SanitizeDisplayName(item.Title), "url", item.ID)
	return nil
}

func (l *ListAction) Finish(ctx context.Context) error { return nil }

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
