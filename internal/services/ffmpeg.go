package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/desertthunder/plsync/internal/shared"
)

const (
	defaultFFmpegPath = "ffmpeg"
	defaultBitrate    = "192k"
)

// FFmpeg transcodes media to MP3 with the ffmpeg binary.
type FFmpeg struct {
	Path    string
	Bitrate string
}

// NewFFmpeg returns a transcoder using path (default "ffmpeg" on $PATH) and bitrate (default 192k).
func NewFFmpeg(path, bitrate string) *FFmpeg {
	if path == "" {
		path = defaultFFmpegPath
	}
	if bitrate == "" {
		bitrate = defaultBitrate
	}
	return &FFmpeg{Path: path, Bitrate: bitrate}
}

// Check verifies that the binary can be found.
func (f *FFmpeg) Check() error {
	if _, err := exec.LookPath(f.Path); err != nil {
		return fmt.Errorf("%w: ffmpeg not found at %q: %v", shared.ErrInvalidConfig, f.Path, err)
	}
	return nil
}

func (f *FFmpeg) args(src, dst string, meta TrackMeta) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "warning", "-nostdin", "-i", src, "-vn", "-codec:a", "libmp3lame", "-b:a", f.Bitrate}
	if meta.Title != "" {
		args = append(args, "-metadata", "title="+meta.Title)
	}
	if meta.Artist != "" {
		args = append(args, "-metadata", "artist="+meta.Artist)
	}
	return append(args, "-id3v2_version", "3", dst)
}

// Transcode converts src into an MP3 at dst. A partial dst is removed on failure.
func (f *FFmpeg) Transcode(ctx context.Context, src, dst string, meta TrackMeta) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Path, f.args(src, dst, meta)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(dst)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: ffmpeg: %v: %s", shared.ErrAction, err, lastLine(msg))
		}
		return fmt.Errorf("%w: ffmpeg: %v", shared.ErrAction, err)
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
