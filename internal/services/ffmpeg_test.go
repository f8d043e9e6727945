package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/desertthunder/plsync/internal/shared"
)

func TestFFmpegArgs(t *testing.T) {
	f := NewFFmpeg("", "")
	if f.Path != "ffmpeg" || f.Bitrate != "192k" {
		t.Fatalf("unexpected defaults %+v", f)
	}

	got := f.args("in.webm", "out.mp3", TrackMeta{Title: "Song: A", Artist: "B"})
	want := []string{
		"-y", "-hide_banner", "-loglevel", "warning", "-nostdin", "-i", "in.webm",
		"-vn", "-codec:a", "libmp3lame", "-b:a", "192k",
		"-metadata", "title=Song: A", "-metadata", "artist=B",
		"-id3v2_version", "3", "out.mp3",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args() =\n%q\nwant\n%q", got, want)
	}

	bare := f.args("in", "out", TrackMeta{})
	for _, a := range bare {
		if a == "-metadata" {
			t.Error("empty metadata should not be passed")
		}
	}
}

// writeScript installs a fake ffmpeg that runs body with the output path as $out.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor a; do out=\"$a\"; done\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegTranscode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		bin := writeScript(t, `echo mp3 > "$out"`)
		dst := filepath.Join(t.TempDir(), "song.mp3")

		f := NewFFmpeg(bin, "128k")
		if err := f.Check(); err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if err := f.Transcode(context.Background(), "in", dst, TrackMeta{Title: "x"}); err != nil {
			t.Fatalf("Transcode() error = %v", err)
		}
		if _, err := os.Stat(dst); err != nil {
			t.Errorf("expected output file: %v", err)
		}
	})

	t.Run("failure removes partial output", func(t *testing.T) {
		bin := writeScript(t, `echo partial > "$out"; echo "first" >&2; echo "Invalid data found" >&2; exit 1`)
		dst := filepath.Join(t.TempDir(), "song.mp3")

		err := NewFFmpeg(bin, "").Transcode(context.Background(), "in", dst, TrackMeta{})
		if !errors.Is(err, shared.ErrAction) {
			t.Fatalf("expected ErrAction, got %v", err)
		}
		if !strings.Contains(err.Error(), "Invalid data found") || strings.Contains(err.Error(), "first") {
			t.Errorf("expected last stderr line in error, got %v", err)
		}
		if _, err := os.Stat(dst); !os.IsNotExist(err) {
			t.Error("partial output should be removed")
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		f := NewFFmpeg(filepath.Join(t.TempDir(), "nope"), "")
		if err := f.Check(); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
