package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	th "github.com/desertthunder/plsync/internal/testing"
)

type fixture struct {
	runner *Runner
	output *bytes.Buffer
	source *th.MockPlaylistSource
	audio  *th.MockAudioSource
	db     *sql.DB
}

func newFixture(t *testing.T, playlists ...*models.Playlist) *fixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	config := shared.DefaultConfig()
	config.Sync.RetryDelay = 0
	config.Sync.ItemDelay = 0
	config.Database.Enabled = false

	f := &fixture{
		output: &bytes.Buffer{},
		source: &th.MockPlaylistSource{Playlists: playlists},
		audio:  &th.MockAudioSource{Data: []byte("audio")},
		db:     db,
	}
	f.runner = NewRunner(RunnerOpts{
		Config:     config,
		Logger:     shared.NewLogger(io.Discard),
		Output:     f.output,
		Source:     f.source,
		Audio:      f.audio,
		Transcoder: &th.MockTranscoder{},
		Fetcher:    &th.MockImageFetcher{},
		DB:         db,
	})
	return f
}

func (f *fixture) run(args ...string) error {
	return newApp(f.runner).Run(context.Background(), append([]string{"plsync"}, args...))
}

const playlistURL = "https://www.youtube.com/playlist?list=PL-Mix"

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil || runner.configured {
				t.Error("expected default config that is still resolved by Before")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.runs != nil {
				t.Error("history should open lazily")
			}
		})

		t.Run("with dependencies provided", func(t *testing.T) {
			f := newFixture(t)
			if f.runner.source != f.source || f.runner.audio != f.audio {
				t.Error("expected injected services to be kept")
			}
			if f.runner.runs == nil {
				t.Error("expected run repository over the injected database")
			}
			if err := f.runner.Close(); err != nil {
				t.Errorf("Close() should not close an injected database: %v", err)
			}
			if err := f.db.Ping(); err != nil {
				t.Errorf("injected database was closed: %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		result := output.String()
		if !strings.Contains(result, `"key": "value"`) || !strings.HasSuffix(result, "\n") {
			t.Errorf("expected formatted JSON with newline, got %s", result)
		}

		failing := NewRunner(RunnerOpts{Output: &th.FWriter{}})
		if err := failing.writeJSON(map[string]string{}, false); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("history without database", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Enabled = false
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})

		if _, err := runner.history(); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errors.New("boom"), exitFailure},
		{fmt.Errorf("%w: url", shared.ErrMissingArgument), exitUsage},
		{shared.ErrInvalidConfig, exitUsage},
		{fmt.Errorf("wrapped: %w", shared.ErrFetch), exitFetch},
		{shared.ErrLegacyLedger, exitLedger},
		{fmt.Errorf("%w: Song: gave up", shared.ErrAction), exitAction},
		{context.Canceled, exitCanceled},
	}

	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSyncCommand(t *testing.T) {
	t.Run("list records the ledger and history", func(t *testing.T) {
		dir := t.TempDir()
		f := newFixture(t, th.NewPlaylist("Mix", "v1", "v2"))

		if err := f.run("sync", "list", "--url", playlistURL, "--dest", dir); err != nil {
			t.Fatalf("sync list error = %v", err)
		}
		if !strings.Contains(f.output.String(), "Sync complete") {
			t.Errorf("expected summary in output:\n%s", f.output.String())
		}
		got := th.MustReadFile(t, filepath.Join(dir, "Mix.csv"))
		if strings.Count(got, "\n") != 3 {
			t.Errorf("expected header and two rows, got %q", got)
		}

		f.output.Reset()
		if err := f.run("history", "runs", "--json"); err != nil {
			t.Fatal(err)
		}
		var runs []models.Run
		if err := json.Unmarshal(f.output.Bytes(), &runs); err != nil {
			t.Fatalf("history output is not JSON: %v\n%s", err, f.output.String())
		}
		if len(runs) != 1 || runs[0].Status != models.RunStatusCompleted || runs[0].Processed != 2 || runs[0].Mode != "list" {
			t.Errorf("unexpected history %+v", runs)
		}

		f.output.Reset()
		if err := f.run("sync", "list", "--url", playlistURL, "--dest", dir); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(f.output.String(), "Nothing to do") {
			t.Errorf("second run should be a no-op:\n%s", f.output.String())
		}
	})

	t.Run("audio writes into a dated folder", func(t *testing.T) {
		dir := t.TempDir()
		f := newFixture(t, th.NewPlaylist("Mix", "v1"))

		if err := f.run("sync", "audio", "--url", playlistURL, "--dest", dir); err != nil {
			t.Fatalf("sync audio error = %v", err)
		}
		matches, err := filepath.Glob(filepath.Join(dir, "*", "Song v1.mp3"))
		if err != nil || len(matches) != 1 {
			t.Errorf("expected one mp3 in a dated folder, got %v", matches)
		}
	})

	t.Run("sheet writes a workbook", func(t *testing.T) {
		dir := t.TempDir()
		f := newFixture(t, th.NewPlaylist("Mix", "v1"))

		if err := f.run("sync", "sheet", "--url", playlistURL, "--dest", dir); err != nil {
			t.Fatalf("sync sheet error = %v", err)
		}
		th.AssertFileExists(t, filepath.Join(dir, "Mix.xlsx"))
		th.AssertFileExists(t, filepath.Join(dir, "Mix.csv"))
	})

	t.Run("failures are skipped and recorded", func(t *testing.T) {
		dir := t.TempDir()
		f := newFixture(t, th.NewPlaylist("Mix", "v1", "v2"))
		f.audio.Errs = map[string]error{"v2": shared.ErrNoAudio}

		if err := f.run("sync", "audio", "--url", playlistURL, "--dest", dir, "--retries", "2"); err != nil {
			t.Fatalf("skip policy should succeed, got %v", err)
		}
		if n := strings.Count(strings.Join(f.audio.Opened, ","), "v2"); n != 2 {
			t.Errorf("v2 attempted %d times, want 2", n)
		}
		if !strings.Contains(f.output.String(), "Song v2 (2 attempts)") {
			t.Errorf("summary should list the skipped item:\n%s", f.output.String())
		}

		f.output.Reset()
		if err := f.run("history", "failures", "--playlist", playlistURL); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(f.output.String(), models.WatchURL("v2")) {
			t.Errorf("expected failed item in history:\n%s", f.output.String())
		}
	})

	t.Run("abort policy returns the action error", func(t *testing.T) {
		dir := t.TempDir()
		f := newFixture(t, th.NewPlaylist("Mix", "v1", "v2", "v3"))
		f.audio.Errs = map[string]error{"v2": shared.ErrNoAudio}

		err := f.run("sync", "audio", "--url", playlistURL, "--dest", dir, "--retries", "1", "--on-failure", "abort")
		if !errors.Is(err, shared.ErrAction) || exitCode(err) != exitAction {
			t.Fatalf("expected ErrAction, got %v", err)
		}
		if got := th.MustReadFile(t, filepath.Join(dir, "Mix.csv")); !strings.Contains(got, "v1") || strings.Contains(got, "v3") {
			t.Errorf("ledger should hold only v1, got %q", got)
		}
	})

	t.Run("fetch errors", func(t *testing.T) {
		f := newFixture(t)
		f.source.Err = errors.New("network down")

		err := f.run("sync", "list", "--url", playlistURL, "--dest", t.TempDir())
		if !errors.Is(err, shared.ErrFetch) || exitCode(err) != exitFetch {
			t.Errorf("expected ErrFetch, got %v", err)
		}
	})

	t.Run("invalid flags", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{"zero retries", []string{"--retries", "0"}},
			{"bad append mode", []string{"--append-mode", "sometimes"}},
			{"bad failure policy", []string{"--on-failure", "explode"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t, th.NewPlaylist("Mix", "v1"))
				args := append([]string{"sync", "list", "--url", playlistURL, "--dest", t.TempDir()}, tt.args...)
				if err := f.run(args...); !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				if f.source.Calls != 0 {
					t.Error("playlist should not be fetched with invalid flags")
				}
			})
		}
	})

	t.Run("batch append mode", func(t *testing.T) {
		dir := t.TempDir()
		f := newFixture(t, th.NewPlaylist("Mix", "v1", "v2"))

		if err := f.run("sync", "list", "--url", playlistURL, "--dest", dir, "--append-mode", "batch"); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(f.output.String(), "Appended 2 item(s)") {
			t.Errorf("expected a single batch append:\n%s", f.output.String())
		}
	})
}

func TestLedgerCommand(t *testing.T) {
	writeLedger := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "Mix.csv")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("show", func(t *testing.T) {
		path := writeLedger(t, "Title,URL\nSong v1,"+models.WatchURL("v1")+"\n")
		f := newFixture(t)

		if err := f.run("ledger", "show", "--path", path, "--format", "json"); err != nil {
			t.Fatalf("ledger show error = %v", err)
		}
		var doc struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}
		if err := json.Unmarshal(f.output.Bytes(), &doc); err != nil {
			t.Fatalf("expected JSON, got %s", f.output.String())
		}
		if doc.Name != "Mix" || doc.Count != 1 {
			t.Errorf("unexpected export %+v", doc)
		}

		out := filepath.Join(t.TempDir(), "mix.md")
		if err := f.run("ledger", "show", "--path", path, "--format", "markdown", "--output", out); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(th.MustReadFile(t, out), "Song v1") {
			t.Error("markdown export should contain the entry")
		}
	})

	t.Run("show missing ledger", func(t *testing.T) {
		f := newFixture(t)
		missing := filepath.Join(t.TempDir(), "none.csv")
		if err := f.run("ledger", "show", "--path", missing); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		th.AssertNotExists(t, missing)
	})

	t.Run("migrate", func(t *testing.T) {
		path := writeLedger(t, "Song v1\nSong v2\nGone\n")
		f := newFixture(t, th.NewPlaylist("Mix", "v1", "v2"))

		if err := f.run("ledger", "migrate", "--path", path, "--url", playlistURL); err != nil {
			t.Fatalf("ledger migrate error = %v", err)
		}
		th.AssertFileExists(t, path+".legacy")
		got := th.MustReadFile(t, path)
		if !strings.Contains(got, models.WatchURL("v1")) || !strings.Contains(got, models.WatchURL("v2")) {
			t.Errorf("migrated ledger missing urls: %q", got)
		}
		if !strings.Contains(f.output.String(), "Gone") || !strings.Contains(f.output.String(), "Matched: 2") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}

		f.output.Reset()
		if err := f.run("sync", "list", "--url", playlistURL, "--dest", filepath.Dir(path)); err != nil {
			t.Fatalf("sync after migrate error = %v", err)
		}
		if !strings.Contains(f.output.String(), "Nothing to do") {
			t.Errorf("migrated ledger should cover the playlist:\n%s", f.output.String())
		}
	})
}

func TestSetupCommand(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		f := newFixture(t)

		if err := f.run("setup", "config", "--path", path); err != nil {
			t.Fatalf("setup config error = %v", err)
		}
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("written config should load: %v", err)
		}
		if err := f.run("setup", "config", "--path", path); err == nil {
			t.Error("expected error when the config already exists")
		}
	})

	t.Run("database", func(t *testing.T) {
		f := newFixture(t)
		f.runner.config.Database.Path = filepath.Join(t.TempDir(), "history.db")

		if err := f.run("setup", "database"); err != nil {
			t.Fatalf("setup database error = %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "[✓] 0000 create_runs") || !strings.Contains(out, "[✓] 0001 create_failures") {
			t.Errorf("expected applied migrations:\n%s", out)
		}

		f.output.Reset()
		if err := f.run("setup", "database", "--rollback"); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(f.output.String(), "[ ] 0001 create_failures") {
			t.Errorf("expected rolled back migration:\n%s", f.output.String())
		}
	})
}
