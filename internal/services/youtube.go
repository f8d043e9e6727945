// YouTube [PlaylistSource] and [AudioSource] implementation
//
// Backed by github.com/kkdai/youtube/v2; no API key or login is required for public playlists.
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kkdai/youtube/v2"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

const defaultYouTubeTimeout = 30 * time.Second

// youtubeClient is the subset of [youtube.Client] used here.
type youtubeClient interface {
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// YouTubeService lists playlists and opens audio streams.
type YouTubeService struct {
	client youtubeClient
	logger *log.Logger
}

// NewYouTubeService creates a service whose HTTP requests time out after timeout.
func NewYouTubeService(timeout time.Duration, logger *log.Logger) *YouTubeService {
	if timeout <= 0 {
		timeout = defaultYouTubeTimeout
	}
	client := &youtube.Client{HTTPClient: &http.Client{Timeout: timeout}}
	return newYouTubeService(client, logger)
}

func newYouTubeService(client youtubeClient, logger *log.Logger) *YouTubeService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &YouTubeService{client: client, logger: logger}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

// FetchPlaylist lists a playlist. Entries without an ID are skipped with a warning.
func (y *YouTubeService) FetchPlaylist(ctx context.Context, url string) (*models.Playlist, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: %w: playlist URL is empty", shared.ErrFetch, shared.ErrInvalidInput)
	}

	p, err := y.client.GetPlaylistContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrFetch, url, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %w: %s", shared.ErrFetch, shared.ErrPlaylistNotFound, url)
	}

	playlist := &models.Playlist{
		ID:     p.ID,
		Title:  p.Title,
		Author: p.Author,
		URL:    url,
		Items:  make([]models.Item, 0, len(p.Videos)),
	}
	for i, entry := range p.Videos {
		if entry == nil || entry.ID == "" {
			y.logger.Warn("skipping playlist entry without id", "index", i)
			continue
		}
		item := models.NewItem(entry.ID, entry.Title)
		item.Author = entry.Author
		item.Duration = entry.Duration
		item.ThumbnailURL = bestThumbnail(entry.Thumbnails)
		item.Index = i
		playlist.Items = append(playlist.Items, item)
	}

	y.logger.Debug("fetched playlist", "title", shared.SanitizeDisplayName(playlist.Title), "items", len(playlist.Items))
	return playlist, nil
}

// OpenAudio resolves the video and opens its best audio stream.
func (y *YouTubeService) OpenAudio(ctx context.Context, videoID string) (*AudioStream, error) {
	video, err := y.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get video %s: %v", shared.ErrAction, videoID, err)
	}

	format, err := selectAudioFormat(video.Formats)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, videoID)
	}

	stream, size, err := y.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open stream for %s: %v", shared.ErrAction, videoID, err)
	}

	return &AudioStream{
		ReadCloser: stream,
		MimeType:   format.MimeType,
		Size:       size,
		Title:      video.Title,
		Author:     video.Author,
	}, nil
}

// bestThumbnail returns the URL of the largest thumbnail by area.
func bestThumbnail(thumbs youtube.Thumbnails) string {
	var (
		best string
		area uint
	)
	for _, t := range thumbs {
		if a := t.Width * t.Height; best == "" || a > area {
			best, area = t.URL, a
		}
	}
	return best
}

func formatBitrate(f *youtube.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	return f.AverageBitrate
}

// selectAudioFormat picks the highest-bitrate audio-only format, falling back to
// muxed formats that carry audio.
func selectAudioFormat(formats youtube.FormatList) (*youtube.Format, error) {
	var audioOnly, withAudio []*youtube.Format
	for i := range formats {
		f := &formats[i]
		switch {
		case strings.HasPrefix(f.MimeType, "audio/"):
			audioOnly = append(audioOnly, f)
		case f.AudioChannels > 0:
			withAudio = append(withAudio, f)
		}
	}

	candidates := audioOnly
	if len(candidates) == 0 {
		candidates = withAudio
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %w", shared.ErrAction, shared.ErrNoAudio)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return formatBitrate(candidates[i]) > formatBitrate(candidates[j])
	})
	return candidates[0], nil
}

// AudioExtension maps an audio MIME type to a file extension for the pre-transcode download.
func AudioExtension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/mp4", "video/mp4":
		return ".m4a"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".bin"
	}
}
