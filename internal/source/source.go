// Package source dispatches a client-supplied PlaySource to the
// SourcePlayer that can resolve it into a Playable audio stream.
package source

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"nightingale/internal/track"
)

// SourcePlayer resolves a URL into a Playable. Each implementation
// (YouTube, external extractor, plain HTTP, Deezer) handles one platform
// and returns the stream itself rather than just a resolved URL, so the
// Registry never has to know how a given kind fetches.
type SourcePlayer interface {
	PlayURL(ctx context.Context, url string) (track.Playable, error)
}

// youtubeURLPattern recognizes youtube.com/youtu.be links.
var youtubeURLPattern = regexp.MustCompile(`(?i)(youtube\.com|youtu\.be)`)

// deezerURLPattern recognizes deezer.com track/playlist/album links.
var deezerURLPattern = regexp.MustCompile(`(?i)deezer\.com`)

// Registry holds one SourcePlayer per platform and routes each
// PlaySource to the right one.
type Registry struct {
	youtube  SourcePlayer
	external SourcePlayer
	http     SourcePlayer
	deezer   SourcePlayer
}

// New builds a Registry. Any player may be nil; dispatching to a nil player
// returns an error rather than panicking (a deployment can run without
// yt-dlp installed and still serve Http/Bytes sources, for example).
func New(youtube, external, http, deezer SourcePlayer) *Registry {
	return &Registry{youtube: youtube, external: external, http: http, deezer: deezer}
}

// sourceFor picks the player for src: Link{force_external} or a Link URL
// matching neither the YouTube nor the Deezer pattern goes to the external
// (yt-dlp-style) extractor; a Deezer-matching Link goes to the Deezer
// player; otherwise YouTube direct. Http always goes to the plain HTTP
// player. A Link is never silently routed to the Http player even if its
// URL looks like a direct audio file.
func (r *Registry) sourceFor(src *track.PlaySource) (SourcePlayer, error) {
	switch src.Kind {
	case track.KindHTTP:
		if r.http == nil {
			return nil, fmt.Errorf("source: no http player configured")
		}
		return r.http, nil
	case track.KindLink:
		url := strings.TrimSpace(src.URL)
		if !src.ForceExternal && deezerURLPattern.MatchString(url) {
			if r.deezer == nil {
				return nil, fmt.Errorf("source: no deezer player configured")
			}
			return r.deezer, nil
		}
		if !src.ForceExternal && youtubeURLPattern.MatchString(url) {
			if r.youtube == nil {
				return nil, fmt.Errorf("source: no youtube player configured")
			}
			return r.youtube, nil
		}
		if r.external == nil {
			return nil, fmt.Errorf("source: no external player configured")
		}
		return r.external, nil
	default:
		return nil, fmt.Errorf("source: kind %d has no SourcePlayer", src.Kind)
	}
}

// PlayableFor resolves src into a Playable. Bytes sources are constructed
// in-line from the caller-supplied buffer; everything else goes through
// sourceFor().PlayURL. A caller-supplied Meta override always wins over
// whatever the source reports.
func (r *Registry) PlayableFor(src *track.PlaySource) (track.Playable, error) {
	if src.Kind == track.KindBytes {
		p := track.Playable{Input: bytes.NewReader(src.Data)}
		if src.Meta != nil {
			p.Meta = *src.Meta
		}
		return p, nil
	}

	sp, err := r.sourceFor(src)
	if err != nil {
		return track.Playable{}, err
	}
	p, err := sp.PlayURL(context.Background(), src.URL)
	if err != nil {
		return track.Playable{}, err
	}
	if src.Meta != nil {
		p.Meta = *src.Meta
	}
	return p, nil
}
