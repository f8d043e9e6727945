// package services defines the collaborators used by sync actions
package services

import (
	"context"
	"io"

	"github.com/desertthunder/plsync/internal/models"
)

// PlaylistSource lists the entries of a playlist in source order.
type PlaylistSource interface {
	FetchPlaylist(ctx context.Context, url string) (*models.Playlist, error)
}

// AudioSource opens the best audio stream of a video.
type AudioSource interface {
	OpenAudio(ctx context.Context, videoID string) (*AudioStream, error)
}

// Transcoder converts a downloaded media file into the output audio format.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string, meta TrackMeta) error
}

// ImageFetcher downloads an image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// AudioStream is an open audio download. Callers must Close it.
type AudioStream struct {
	io.ReadCloser
	MimeType string
	Size     int64
	Title    string
	Author   string
}

// TrackMeta is written into transcoded files as tags.
type TrackMeta struct {
	Title  string
	Artist string
}
