// Package external implements the yt-dlp-style extractor SourcePlayer:
// the fallback used for a Link when force_external is set, or when the URL
// matches neither the YouTube nor the Deezer pattern. It reuses the same
// yt-dlp invocation the youtube player uses, since the underlying
// extraction mechanism is identical; only the dispatch rule that routes
// here differs.
package external

import (
	"context"
	"fmt"
	"net/http"

	"nightingale/internal/source/youtube"
	"nightingale/internal/track"
)

// Player implements source.SourcePlayer for links not recognized by a more
// specific extractor.
type Player struct{}

// New creates an external-extractor SourcePlayer.
func New() *Player { return &Player{} }

// PlayURL resolves url via yt-dlp (no YouTube-specific URL normalization)
// and fetches the resolved stream.
func (p *Player) PlayURL(ctx context.Context, url string) (track.Playable, error) {
	streamURL, err := youtube.ResolveStreamURL(ctx, url)
	if err != nil {
		return track.Playable{}, fmt.Errorf("external: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return track.Playable{}, fmt.Errorf("external: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return track.Playable{}, fmt.Errorf("external: fetch stream: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return track.Playable{}, fmt.Errorf("external: stream fetch status %d", resp.StatusCode)
	}

	meta := track.Meta{URL: url}
	if m, merr := youtube.ExtractMetadata(ctx, url); merr == nil {
		meta.Title = m.Title
		meta.Duration = float64(m.Duration)
		meta.Thumbnail = m.Thumbnail
	}

	return track.Playable{Input: resp.Body, Meta: meta}, nil
}
