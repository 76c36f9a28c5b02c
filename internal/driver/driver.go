// Package driver defines the boundary between Nightingale's player runtime
// and the voice library that actually speaks the gateway's voice protocol.
// The driver is treated as a black box: it accepts an input byte stream and
// emits lifecycle events on its own schedule. Everything downstream of
// Connect/Play/Leave is someone else's concern.
package driver

import (
	"context"
	"io"
	"time"
)

// ConnectInfo carries what a driver needs to join a voice channel.
type ConnectInfo struct {
	GuildID   uint64
	ChannelID uint64
	Endpoint  string
	Token     string
	// SessionID is the gateway voice-state session, required by real voice
	// implementations for the handshake. LocalDriver ignores it.
	SessionID string
}

// EventKind discriminates the events a Driver emits asynchronously.
type EventKind int

const (
	// TrackEnd fires when a Handle's input stream is exhausted or stopped.
	TrackEnd EventKind = iota
	// DriverConnect fires on the first successful voice handshake.
	DriverConnect
	// DriverReconnect fires after a transparent voice-gateway reconnect.
	DriverReconnect
	// DriverDisconnect fires when the voice connection is torn down.
	DriverDisconnect
)

// Event is a single asynchronous notification from a Driver.
type Event struct {
	Kind      EventKind
	GuildID   uint64
	ChannelID uint64
	// Handle identifies which Play() call a TrackEnd belongs to. Zero for
	// connection-lifecycle events.
	Handle uint64
	// Stopped reports whether a TrackEnd was caused by an explicit
	// Handle.Stop rather than the input stream running out.
	Stopped bool
}

// Handle is a live handle to one Play() invocation.
type Handle interface {
	// ID uniquely identifies this handle among all handles ever issued by
	// its Driver. Used by PlayerHandler to match a TrackEnd event against
	// the queue's notion of "current".
	ID() uint64
	// Stop ends playback for this handle immediately. Idempotent.
	Stop()
	// SetVolume scales output amplitude; v is in [0, 5.12].
	SetVolume(v float64)
	// Pause and Resume suspend/continue frame delivery without losing the
	// handle's place in its input stream.
	Pause()
	Resume()
	// Seek restarts playback at offset from the start of the track.
	// Returns an error if the handle's input stream cannot be rewound
	// (most network sources cannot; inline byte sources can).
	Seek(ctx context.Context, offset time.Duration) error
}

// Driver is the black-box voice connection contract a Player drives.
type Driver interface {
	// Connect joins (or moves to) the given voice channel. May block on a
	// gateway handshake.
	Connect(ctx context.Context, info ConnectInfo) error
	// Leave disconnects from voice. Idempotent.
	Leave(ctx context.Context) error
	// Play begins streaming input and returns a Handle. The driver owns
	// reading from input until TrackEnd fires or Handle.Stop is called.
	Play(ctx context.Context, input io.Reader) (Handle, error)
	// Events returns the channel of asynchronous lifecycle notifications.
	// The same channel is returned on every call.
	Events() <-chan Event
}
