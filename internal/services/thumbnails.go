package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/plsync/internal/shared"
)

const userAgent = "plsync/1.0"

// ErrUnexpectedStatus marks a thumbnail response that was received but was not 200 OK.
var ErrUnexpectedStatus = errors.New("unexpected status")

// ThumbnailFetcher downloads thumbnail images over HTTP.
type ThumbnailFetcher struct {
	client *resty.Client
}

// NewThumbnailFetcher creates a fetcher with the given request timeout.
func NewThumbnailFetcher(timeout time.Duration) *ThumbnailFetcher {
	if timeout <= 0 {
		timeout = defaultYouTubeTimeout
	}
	return newThumbnailFetcher(resty.New().SetTimeout(timeout))
}

func newThumbnailFetcher(client *resty.Client) *ThumbnailFetcher {
	client.SetHeader("User-Agent", userAgent)
	return &ThumbnailFetcher{client: client}
}

// Fetch returns the body of url. Anything but 200 OK is an error.
func (t *ThumbnailFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty thumbnail URL", shared.ErrAction)
	}

	resp, err := t.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch thumbnail: %v", shared.ErrAction, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: %w: thumbnail request returned %s", shared.ErrAction, ErrUnexpectedStatus, resp.Status())
	}
	return resp.Body(), nil
}
