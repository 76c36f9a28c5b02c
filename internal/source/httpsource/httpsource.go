// Package httpsource implements the plain-HTTP SourcePlayer: a direct
// net/http GET against the caller's URL, with metadata derived from the
// response where available.
package httpsource

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"nightingale/internal/track"
)

// Player implements source.SourcePlayer for direct HTTP(S) audio URLs.
type Player struct{}

// New creates a plain-HTTP SourcePlayer.
func New() *Player { return &Player{} }

// PlayURL issues a GET against url and returns the response body as the
// Playable's input stream. Title falls back to the URL's base filename
// when the server doesn't offer anything better.
func (p *Player) PlayURL(ctx context.Context, url string) (track.Playable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return track.Playable{}, fmt.Errorf("httpsource: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return track.Playable{}, fmt.Errorf("httpsource: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return track.Playable{}, fmt.Errorf("httpsource: status %d", resp.StatusCode)
	}

	title := strings.TrimSpace(path.Base(req.URL.Path))
	if title == "" || title == "." || title == "/" {
		title = url
	}

	return track.Playable{
		Input: resp.Body,
		Meta:  track.Meta{Title: title, URL: url},
	}, nil
}
