// Package playback holds the per-session collection of Players: a
// guild-keyed map, the event sender every Player and handler shares, and
// the pieces needed to materialize a new Player on first touch of a
// guild.
package playback

import (
	"context"

	"nightingale/internal/concurrent"
	"nightingale/internal/driver"
	"nightingale/internal/events"
	"nightingale/internal/player"
	"nightingale/internal/source"
)

// DriverFactory builds a fresh Driver for a newly created Player. Each
// guild gets its own driver instance; guildID is supplied for drivers that
// want to tag their own logging.
type DriverFactory func(guildID uint64) driver.Driver

// Playback is the per-session container of Players: the guild-keyed map,
// the single Sender shared by every Player and handler, the bot user id,
// and a reference to the source registry.
type Playback struct {
	BotUserID uint64

	sender    events.Sender
	sources   *source.Registry
	newDriver DriverFactory

	counters player.Counters

	players  concurrent.Map[uint64, *player.Player]
	handlers concurrent.Map[uint64, *player.Handler]
}

// New creates an empty Playback. sender is shared with the session's
// WebSocketHandler; newDriver is called once per guild the first time its
// Player is created.
func New(botUserID uint64, sender events.Sender, sources *source.Registry, newDriver DriverFactory) *Playback {
	return &Playback{
		BotUserID: botUserID,
		sender:    sender,
		sources:   sources,
		newDriver: newDriver,
	}
}

// PlayerFor returns the Player for guildID, creating it (and its Handler)
// on first use. Each Player is shared with exactly one Handler.
func (pb *Playback) PlayerFor(guildID uint64) *player.Player {
	if p, ok := pb.players.Load(guildID); ok {
		return p
	}

	drv := pb.newDriver(guildID)
	p := player.New(guildID, drv, pb.sources, pb.sender)
	p.SetCounters(pb.counters)
	h := player.NewHandler(p, drv, pb.sender)

	actual, loaded := pb.players.LoadOrStore(guildID, p)
	if loaded {
		// Lost the race: someone else created the Player first. Tear down
		// the one built here instead of leaking its driver/handler.
		h.Stop()
		return actual
	}
	pb.handlers.Store(guildID, h)
	return p
}

// SetCounters installs the lifecycle counter sink handed to every Player
// this Playback creates.
func (pb *Playback) SetCounters(c player.Counters) {
	pb.counters = c
}

// Count reports the number of live Players.
func (pb *Playback) Count() int {
	return pb.players.Len()
}

// Lookup returns guildID's Player without creating one, and whether it
// exists.
func (pb *Playback) Lookup(guildID uint64) (*player.Player, bool) {
	return pb.players.Load(guildID)
}

// Snapshot returns a Snapshot of every live Player, used both for the
// info route and for a resumed Ready frame's players field.
func (pb *Playback) Snapshot() []player.Snapshot {
	var out []player.Snapshot
	pb.players.Range(func(_ uint64, p *player.Player) bool {
		out = append(out, p.Snapshot())
		return true
	})
	return out
}

// DestroyAll tears down every Player. Session destruction runs this
// before the session itself is dropped.
func (pb *Playback) DestroyAll(ctx context.Context) {
	pb.players.Range(func(guildID uint64, p *player.Player) bool {
		p.Destroy(ctx)
		if h, ok := pb.handlers.Load(guildID); ok {
			h.Stop()
		}
		pb.players.Delete(guildID)
		pb.handlers.Delete(guildID)
		return true
	})
}
