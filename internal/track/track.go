// Package track holds the data shapes shared across the queue, source, and
// player packages: the client-supplied PlaySource descriptor, the Meta a
// source reports back, and the Playable a SourcePlayer hands to a Player.
package track

import "io"

// SourceKind discriminates a PlaySource's variant.
type SourceKind int

const (
	// KindLink is a platform URL (YouTube, or anything yt-dlp-style
	// extractors understand) optionally forced to the external extractor.
	KindLink SourceKind = iota
	// KindHTTP is a direct HTTP(S) audio URL, fetched without extraction.
	KindHTTP
	// KindBytes is an inline, caller-supplied audio blob.
	KindBytes
)

// PlaySource is the client-supplied descriptor for one enqueue/play_now
// request. It is also what the repeat engine stores in Queue.backup, since
// driver handles are one-shot and descriptors are what's replayable.
type PlaySource struct {
	Kind SourceKind

	// Link / HTTP
	ForceExternal bool // Link only: skip YouTube-direct, always use the external extractor.
	URL           string

	// Bytes
	Data []byte

	// Meta optionally overrides the metadata a source would otherwise
	// report, for all three variants.
	Meta *Meta
}

// Meta is track metadata, either reported by a Source or supplied by the
// caller as an override.
type Meta struct {
	Title     string  `json:"title"`
	URL       string  `json:"url,omitempty"`
	Duration  float64 `json:"duration_seconds,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Author    string  `json:"author,omitempty"`
}

// Playable is what a SourcePlayer hands back: an audio byte stream paired
// with the metadata to report to clients.
type Playable struct {
	Input io.Reader
	Meta  Meta
}
