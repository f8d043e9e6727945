// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
)

// MockPlaylistSource is a test double for [services.PlaylistSource].
//
// Each call returns the next playlist in Playlists (the last one repeats) or Err.
type MockPlaylistSource struct {
	Playlists []*models.Playlist
	Err       error
	Calls     int
}

func (m *MockPlaylistSource) FetchPlaylist(ctx context.Context, url string) (*models.Playlist, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Playlists) == 0 {
		return &models.Playlist{URL: url}, nil
	}
	idx := min(m.Calls-1, len(m.Playlists)-1)
	pl := *m.Playlists[idx]
	pl.Items = append([]models.Item(nil), pl.Items...)
	return &pl, nil
}

// NewPlaylist builds a playlist whose items have IDs derived from ids and titles "Song <id>".
func NewPlaylist(title string, ids ...string) *models.Playlist {
	pl := &models.Playlist{ID: "PL-" + title, Title: title, URL: "https://www.youtube.com/playlist?list=PL-" + title}
	for i, id := range ids {
		item := models.NewItem(id, "Song "+id)
		item.Index = i
		pl.Items = append(pl.Items, item)
	}
	return pl
}

// MockAudioSource is a test double for [services.AudioSource].
type MockAudioSource struct {
	Data     []byte
	MimeType string
	Errs     map[string]error // per video ID
	Opened   []string
}

func (m *MockAudioSource) OpenAudio(ctx context.Context, videoID string) (*services.AudioStream, error) {
	m.Opened = append(m.Opened, videoID)
	if err := m.Errs[videoID]; err != nil {
		return nil, err
	}
	mime := m.MimeType
	if mime == "" {
		mime = "audio/webm"
	}
	return &services.AudioStream{
		ReadCloser: io.NopCloser(bytes.NewReader(m.Data)),
		MimeType:   mime,
		Size:       int64(len(m.Data)),
		Author:     "Mock Artist",
	}, nil
}

// MockTranscoder copies src to dst instead of running ffmpeg.
type MockTranscoder struct {
	Err   error
	Calls []TranscodeCall
}

// TranscodeCall records one [MockTranscoder.Transcode] invocation.
type TranscodeCall struct {
	Src, Dst string
	Meta     services.TrackMeta
}

func (m *MockTranscoder) Transcode(ctx context.Context, src, dst string, meta services.TrackMeta) error {
	m.Calls = append(m.Calls, TranscodeCall{Src: src, Dst: dst, Meta: meta})
	if m.Err != nil {
		return m.Err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// MockImageFetcher is a test double for [services.ImageFetcher].
type MockImageFetcher struct {
	Data []byte
	Err  error
	URLs []string
}

func (m *MockImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.URLs = append(m.URLs, url)
	return m.Data, m.Err
}

// MockRecorder collects run history in memory. Set Err to make every call fail.
type MockRecorder struct {
	mu       sync.Mutex
	Started  []models.Run
	Finished []models.Run
	Failures []models.Failure
	Err      error
}

func (m *MockRecorder) Start(ctx context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started = append(m.Started, *run)
	return m.Err
}

func (m *MockRecorder) RecordFailure(ctx context.Context, f *models.Failure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures = append(m.Failures, *f)
	return m.Err
}

func (m *MockRecorder) Finish(ctx context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Finished = append(m.Finished, *run)
	return m.Err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// FCloser simulates a failure when reading a stream
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Path should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
