package tasks

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	th "github.com/desertthunder/plsync/internal/testing"
)

func testLogger() *log.Logger { return shared.NewLogger(io.Discard) }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAudioAction(t *testing.T) {
	ctx := context.Background()
	stamp := time.Date(2024, time.March, 7, 14, 5, 0, 0, time.UTC)

	newAction := func(src *th.MockAudioSource, tc *th.MockTranscoder) *AudioAction {
		a := NewAudioAction(src, tc, "", testLogger())
		a.now = func() time.Time { return stamp }
		return a
	}

	t.Run("writes mp3 into dated folder", func(t *testing.T) {
		dir := t.TempDir()
		src := &th.MockAudioSource{Data: []byte("opus-bytes")}
		tc := &th.MockTranscoder{}
		a := newAction(src, tc)

		if err := a.Prepare(ctx, BatchContext{DestinationDir: dir}); err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		wantDir := filepath.Join(dir, "Mar07_14h")
		if a.Dir() != wantDir {
			t.Errorf("Dir() = %s, want %s", a.Dir(), wantDir)
		}
		th.AssertDirExists(t, wantDir)

		item := models.NewItem("v1", "AC/DC: Live?")
		if err := a.Apply(ctx, item); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}

		out := filepath.Join(wantDir, "AC_DC_ Live_.mp3")
		if got := th.MustReadFile(t, out); got != "opus-bytes" {
			t.Errorf("output = %q", got)
		}
		if len(tc.Calls) != 1 {
			t.Fatalf("transcoder called %d times", len(tc.Calls))
		}
		call := tc.Calls[0]
		if filepath.Ext(call.Src) != ".webm" || call.Meta.Title != "AC/DC: Live?" || call.Meta.Artist != "Mock Artist" {
			t.Errorf("unexpected transcode call %+v", call)
		}
		th.AssertNotExists(t, call.Src)

		entries, err := os.ReadDir(wantDir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("expected only the mp3 in %s, found %d entries", wantDir, len(entries))
		}
	})

	t.Run("same title from another item gets its id", func(t *testing.T) {
		dir := t.TempDir()
		a := newAction(&th.MockAudioSource{Data: []byte("x")}, &th.MockTranscoder{})
		if err := a.Prepare(ctx, BatchContext{DestinationDir: dir}); err != nil {
			t.Fatal(err)
		}

		for _, id := range []string{"v1", "v2"} {
			if err := a.Apply(ctx, models.NewItem(id, "Intro")); err != nil {
				t.Fatal(err)
			}
		}
		th.AssertFileExists(t, filepath.Join(a.Dir(), "Intro.mp3"))
		th.AssertFileExists(t, filepath.Join(a.Dir(), "Intro [v2].mp3"))
	})

	t.Run("transcode failure removes the download", func(t *testing.T) {
		dir := t.TempDir()
		tc := &th.MockTranscoder{Err: shared.ErrAction}
		a := newAction(&th.MockAudioSource{Data: []byte("x")}, tc)
		if err := a.Prepare(ctx, BatchContext{DestinationDir: dir}); err != nil {
			t.Fatal(err)
		}

		if err := a.Apply(ctx, models.NewItem("v1", "Song")); !errors.Is(err, shared.ErrAction) {
			t.Fatalf("expected ErrAction, got %v", err)
		}
		th.AssertNotExists(t, tc.Calls[0].Src)
		th.AssertNotExists(t, filepath.Join(a.Dir(), "Song.mp3"))
	})

	t.Run("source errors are returned", func(t *testing.T) {
		src := &th.MockAudioSource{Errs: map[string]error{"v1": shared.ErrNoAudio}}
		tc := &th.MockTranscoder{}
		a := newAction(src, tc)
		if err := a.Prepare(ctx, BatchContext{DestinationDir: t.TempDir()}); err != nil {
			t.Fatal(err)
		}

		if err := a.Apply(ctx, models.NewItem("v1", "Song")); !errors.Is(err, shared.ErrNoAudio) {
			t.Errorf("expected ErrNoAudio, got %v", err)
		}
		if len(tc.Calls) != 0 {
			t.Error("transcoder should not run without a stream")
		}
	})

	t.Run("requires services", func(t *testing.T) {
		a := NewAudioAction(nil, nil, "", testLogger())
		if err := a.Prepare(ctx, BatchContext{DestinationDir: t.TempDir()}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestSheetAction(t *testing.T) {
	ctx := context.Background()

	sheetItem := func(id string) models.Item {
		item := models.NewItem(id, "Song "+id)
		item.ThumbnailURL = "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg"
		return item
	}

	readSheet := func(t *testing.T, path string) ([][]string, *excelize.File) {
		t.Helper()
		f, err := excelize.OpenFile(path)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { f.Close() })
		rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
		if err != nil {
			t.Fatal(err)
		}
		return rows, f
	}

	t.Run("writes rows with thumbnails", func(t *testing.T) {
		dir := t.TempDir()
		fetcher := &th.MockImageFetcher{Data: pngBytes(t)}
		s := NewSheetAction(fetcher, testLogger())
		batch := BatchContext{Playlist: &models.Playlist{Title: "Road/Trip"}, DestinationDir: dir}

		if err := s.Prepare(ctx, batch); err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if s.Path() != filepath.Join(dir, "Road_Trip.xlsx") {
			t.Errorf("Path() = %s", s.Path())
		}
		for _, id := range []string{"v1", "v2"} {
			if err := s.Apply(ctx, sheetItem(id)); err != nil {
				t.Fatalf("Apply(%s) error = %v", id, err)
			}
		}
		path := s.Path()
		if err := s.Finish(ctx); err != nil {
			t.Fatal(err)
		}

		rows, f := readSheet(t, path)
		if len(rows) != 3 || rows[1][1] != "Song v1" || rows[2][2] != models.WatchURL("v2") {
			t.Errorf("unexpected rows %v", rows)
		}
		pics, err := f.GetPictures(f.GetSheetName(f.GetActiveSheetIndex()), "A3")
		if err != nil || len(pics) != 1 {
			t.Errorf("expected a thumbnail in A3, got %d (%v)", len(pics), err)
		}
		if len(fetcher.URLs) != 2 {
			t.Errorf("fetched %d thumbnails", len(fetcher.URLs))
		}
	})

	t.Run("missing thumbnail still writes the row", func(t *testing.T) {
		dir := t.TempDir()
		fetcher := &th.MockImageFetcher{Err: services.ErrUnexpectedStatus}
		s := NewSheetAction(fetcher, testLogger())
		if err := s.Prepare(ctx, BatchContext{Playlist: &models.Playlist{Title: "Mix"}, DestinationDir: dir}); err != nil {
			t.Fatal(err)
		}
		if err := s.Apply(ctx, sheetItem("v1")); err != nil {
			t.Fatalf("non-200 thumbnails should not fail the item: %v", err)
		}
		path := s.Path()
		s.Finish(ctx)

		rows, f := readSheet(t, path)
		if len(rows) != 2 {
			t.Errorf("expected header and one row, got %v", rows)
		}
		pics, _ := f.GetPictures(f.GetSheetName(f.GetActiveSheetIndex()), "A2")
		if len(pics) != 0 {
			t.Error("row should have no picture")
		}
	})

	t.Run("transport errors are retried without duplicate rows", func(t *testing.T) {
		dir := t.TempDir()
		fetcher := &th.MockImageFetcher{Err: errors.New("connection refused")}
		s := NewSheetAction(fetcher, testLogger())
		if err := s.Prepare(ctx, BatchContext{Playlist: &models.Playlist{Title: "Mix"}, DestinationDir: dir}); err != nil {
			t.Fatal(err)
		}

		if err := s.Apply(ctx, sheetItem("v1")); err == nil {
			t.Fatal("expected transport error to fail the attempt")
		}
		fetcher.Err = nil
		fetcher.Data = pngBytes(t)
		if err := s.Apply(ctx, sheetItem("v1")); err != nil {
			t.Fatalf("retry should succeed: %v", err)
		}
		path := s.Path()
		s.Finish(ctx)

		if rows, _ := readSheet(t, path); len(rows) != 2 {
			t.Errorf("expected exactly one data row, got %v", rows)
		}
	})

	t.Run("a row that never saved is dropped before the next item", func(t *testing.T) {
		dir := t.TempDir()
		batch := BatchContext{Playlist: &models.Playlist{Title: "Mix"}, DestinationDir: dir}
		s := NewSheetAction(&th.MockImageFetcher{Data: pngBytes(t)}, testLogger())
		if err := s.Prepare(ctx, batch); err != nil {
			t.Fatal(err)
		}

		// a directory in place of the workbook makes every save fail
		path := s.Path()
		if err := os.Mkdir(path, 0755); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 3; i++ {
			if err := s.Apply(ctx, sheetItem("v1")); !errors.Is(err, shared.ErrAction) {
				t.Fatalf("expected save failure, got %v", err)
			}
		}
		if err := os.Remove(path); err != nil {
			t.Fatal(err)
		}
		if err := s.Apply(ctx, sheetItem("v2")); err != nil {
			t.Fatalf("Apply(v2) error = %v", err)
		}
		s.Finish(ctx)

		// v1 stayed out of the ledger, so the next run applies it again
		next := NewSheetAction(nil, testLogger())
		if err := next.Prepare(ctx, batch); err != nil {
			t.Fatal(err)
		}
		if err := next.Apply(ctx, sheetItem("v1")); err != nil {
			t.Fatal(err)
		}
		next.Finish(ctx)

		rows, f := readSheet(t, path)
		if len(rows) != 3 || rows[1][1] != "Song v2" || rows[2][1] != "Song v1" {
			t.Errorf("expected v2 then v1 exactly once, got %v", rows)
		}
		pics, err := f.GetPictures(f.GetSheetName(f.GetActiveSheetIndex()), "A2")
		if err != nil || len(pics) != 1 {
			t.Errorf("expected only v2's thumbnail in A2, got %d (%v)", len(pics), err)
		}
	})

	t.Run("reopening continues after existing rows", func(t *testing.T) {
		dir := t.TempDir()
		batch := BatchContext{Playlist: &models.Playlist{Title: "Mix"}, DestinationDir: dir}
		for _, id := range []string{"v1", "v2"} {
			s := NewSheetAction(nil, testLogger())
			if err := s.Prepare(ctx, batch); err != nil {
				t.Fatal(err)
			}
			if err := s.Apply(ctx, sheetItem(id)); err != nil {
				t.Fatal(err)
			}
			s.Finish(ctx)
		}

		rows, _ := readSheet(t, filepath.Join(dir, "Mix.xlsx"))
		if len(rows) != 3 || rows[2][1] != "Song v2" {
			t.Errorf("unexpected rows %v", rows)
		}
	})
}

func TestListAction(t *testing.T) {
	var buf bytes.Buffer
	a := NewListAction(shared.NewLogger(&buf))
	if a.Name() != ModeList {
		t.Errorf("Name() = %s", a.Name())
	}
	if err := a.Apply(context.Background(), models.NewItem("v1", "A|B")); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("A_B")) {
		t.Errorf("expected sanitized title in log, got %q", buf.String())
	}
}

func TestEngineWithAudioAction(t *testing.T) {
	dir := t.TempDir()
	src := &th.MockAudioSource{Data: []byte("audio"), Errs: map[string]error{"v2": shared.ErrNoAudio}}
	action := NewAudioAction(src, &th.MockTranscoder{}, "", testLogger())
	engine := NewEngine(&th.MockPlaylistSource{Playlists: []*models.Playlist{th.NewPlaylist("Mix", "v1", "v2")}}, testLogger())

	opts := testOptions(dir)
	opts.Retry.Attempts = 2
	res, err := engine.Run(context.Background(), nil, opts, action)
	if err != nil {
		t.Fatal(err)
	}

	th.AssertFileExists(t, filepath.Join(action.Dir(), "Song v1.mp3"))
	if len(res.Failed) != 1 || res.Failed[0].Attempts != 2 {
		t.Errorf("unexpected failures %+v", res.Failed)
	}
	if got := ledgerIDs(t, res.LedgerPath); len(got) != 1 || got[0] != "v1" {
		t.Errorf("ledger ids = %v", got)
	}
	if n := len(src.Opened); n != 3 {
		t.Errorf("opened %d streams, want 3", n)
	}
}
