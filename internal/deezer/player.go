package deezer

import (
	"context"
	"fmt"

	"nightingale/internal/track"
)

// Player implements source.SourcePlayer for deezer.com track links. Only
// single tracks are directly playable; album and playlist links are
// browsed through the /api/v1/search/deezer/{playlist,album} routes and
// played track by track.
type Player struct {
	client *Client
}

// New creates a Deezer SourcePlayer using client.
func New(client *Client) *Player {
	return &Player{client: client}
}

// PlayURL resolves a deezer.com/track/<id> url to its CDN stream and wraps
// it in a StreamDecoder.
func (p *Player) PlayURL(ctx context.Context, url string) (track.Playable, error) {
	kind, id, ok := ParseLink(url)
	if !ok {
		return track.Playable{}, fmt.Errorf("deezer: invalid url %q", url)
	}
	if kind != KindTrack {
		return track.Playable{}, fmt.Errorf("deezer: %s links are not directly playable, resolve to a track first", kind)
	}

	t, err := p.client.GetTrack(ctx, id)
	if err != nil {
		return track.Playable{}, fmt.Errorf("deezer: %w", err)
	}

	body, err := p.client.openStream(ctx, id)
	if err != nil {
		return track.Playable{}, fmt.Errorf("deezer: %w", err)
	}

	return track.Playable{
		Input: NewStreamDecoder(body, id),
		Meta: track.Meta{
			Title:     t.Title,
			URL:       t.URI,
			Duration:  float64(t.DurationMS) / 1000,
			Thumbnail: t.ArtworkURL,
			Author:    t.Author,
		},
	}, nil
}
