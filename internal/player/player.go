// Package player implements the per-guild playback state machine: the
// queue, the driver connection, volume/pause state, and the operations a
// route or a driver-event callback can perform against it. All mutation
// goes through a ticketed mutex so concurrent requests for the same guild
// commit in the order they arrived.
package player

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"nightingale/internal/driver"
	"nightingale/internal/events"
	"nightingale/internal/queue"
	"nightingale/internal/source"
	"nightingale/internal/ticket"
	"nightingale/internal/track"
)

// Counters receives track lifecycle increments. *metrics.Metrics satisfies
// it; the indirection keeps this package free of a prometheus dependency.
type Counters interface {
	TrackStarted()
	TrackErrored()
}

// Snapshot is the serializable view of a Player's state returned to
// clients (info routes, resume payloads).
type Snapshot struct {
	GuildID   uint64       `json:"guild_id"`
	ChannelID uint64       `json:"channel_id,omitempty"`
	Paused    bool         `json:"paused"`
	Volume    float64      `json:"volume"`
	Current   *track.Meta  `json:"current,omitempty"`
	Queue     []track.Meta `json:"queue"`
}

// Player is the per-guild audio playback state machine.
type Player struct {
	GuildID uint64

	lock    *ticket.Mutex
	channel atomic.Uint64 // 0 means unset; real channel ids are nonzero

	drv     driver.Driver
	queue   *queue.Queue
	sources *source.Registry
	sender  events.Sender

	volume float64
	paused bool

	counters  Counters
	destroyed bool
}

// New creates a Player for guildID, wired to drv for voice I/O, sources
// for resolving PlaySource descriptors, and sender for lifecycle events.
func New(guildID uint64, drv driver.Driver, sources *source.Registry, sender events.Sender) *Player {
	p := &Player{
		GuildID: guildID,
		lock:    ticket.New(),
		drv:     drv,
		sources: sources,
		sender:  sender,
		volume:  1.0,
	}
	p.queue = queue.New(p.materializeForPreload)
	return p
}

// SetCounters installs a lifecycle counter sink. Nil is allowed and
// disables counting.
func (p *Player) SetCounters(c Counters) {
	p.counters = c
}

// emitStart sends a TrackStart event and bumps the started counter.
func (p *Player) emitStart(meta track.Meta) {
	p.sender.Send(events.TrackStart(p.GuildID, meta))
	if p.counters != nil {
		p.counters.TrackStarted()
	}
}

// materializeForPreload is the Queue.Materialize callback used for
// internal refill paths (LoadNext, repeat) that already run under the
// Player's lock and have no FIFO-ordering requirement of their own.
func (p *Player) materializeForPreload(src track.PlaySource, startPaused bool) (driver.Handle, track.Meta, error) {
	playable, err := p.sources.PlayableFor(&src)
	if err != nil {
		return nil, track.Meta{}, err
	}
	h, err := p.drv.Play(context.Background(), playable.Input)
	if err != nil {
		return nil, track.Meta{}, err
	}
	h.SetVolume(p.volume)
	if startPaused {
		h.Pause()
	}
	return h, playable.Meta, nil
}

// Update connects the driver to info's channel, or leaves voice if info is
// nil.
func (p *Player) Update(ctx context.Context, info *driver.ConnectInfo) error {
	guard := p.lock.Lock()
	defer guard.Unlock()

	if info == nil {
		return p.drv.Leave(ctx)
	}
	return p.drv.Connect(ctx, *info)
}

// Enqueue resolves src to a Playable and driver Handle, then commits it
// to the queue. The ticket is obtained before the slow source fetch and
// driver Play call, and the lock is held only to commit, so concurrent
// Enqueue calls for this guild still commit in the order their tickets
// were issued regardless of which fetch finishes first.
func (p *Player) Enqueue(ctx context.Context, src track.PlaySource) (track.Meta, error) {
	tk := p.lock.Ticket()

	playable, err := p.sources.PlayableFor(&src)
	if err != nil {
		tk.Wait().Unlock()
		return track.Meta{}, fmt.Errorf("source: %w", err)
	}

	h, err := p.drv.Play(ctx, playable.Input)
	if err != nil {
		tk.Wait().Unlock()
		return track.Meta{}, fmt.Errorf("driver play: %w", err)
	}

	guard := tk.Wait()
	defer guard.Unlock()

	h.SetVolume(p.volume)
	didStart := p.queue.EnqueueResolved(src, h, playable.Meta)
	if !didStart {
		// A track is already current; this one is staged paused until
		// promoted.
		h.Pause()
		return playable.Meta, nil
	}

	if perr := p.queue.PlayNext(); perr != nil {
		return playable.Meta, fmt.Errorf("driver play: %w", perr)
	}
	p.emitStart(p.queue.Current().Meta)
	if _, f := p.queue.LoadNext(); len(f) > 0 {
		p.reportFailed(f)
	}
	return playable.Meta, nil
}

// PlayNow materializes src and plays it immediately, demoting whatever was
// playing back into the queue. On driver failure the prior state is left
// untouched.
func (p *Player) PlayNow(ctx context.Context, src track.PlaySource) (track.Meta, error) {
	guard := p.lock.Lock()
	defer guard.Unlock()

	playable, err := p.sources.PlayableFor(&src)
	if err != nil {
		return track.Meta{}, fmt.Errorf("source: %w", err)
	}
	h, err := p.drv.Play(ctx, playable.Input)
	if err != nil {
		return track.Meta{}, fmt.Errorf("driver play: %w", err)
	}
	h.SetVolume(p.volume)

	if cur := p.queue.Current(); cur != nil {
		cur.Handle.Pause()
	}
	p.queue.ForceTrack(h, src, playable.Meta)
	p.emitStart(playable.Meta)
	return playable.Meta, nil
}

// Pause forwards to the queue and records paused state.
func (p *Player) Pause() {
	guard := p.lock.Lock()
	defer guard.Unlock()
	p.paused = true
	if cur := p.queue.Current(); cur != nil {
		cur.Handle.Pause()
	}
}

// Resume forwards to the queue and clears paused state.
func (p *Player) Resume() {
	guard := p.lock.Lock()
	defer guard.Unlock()
	p.paused = false
	if cur := p.queue.Current(); cur != nil {
		cur.Handle.Resume()
	}
}

// Paused reports the current pause flag.
func (p *Player) Paused() bool {
	guard := p.lock.Lock()
	defer guard.Unlock()
	return p.paused
}

// SetVolume applies v to the queue's current and next handles. Clamping
// to 0..5.12 is the route's responsibility.
func (p *Player) SetVolume(v float64) {
	guard := p.lock.Lock()
	defer guard.Unlock()
	p.volume = v
	p.queue.SetVolume(v)
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	guard := p.lock.Lock()
	defer guard.Unlock()
	return p.volume
}

// SetRepeat delegates to the queue and, if the queue is already drained,
// runs one advance pass immediately — otherwise a repeat turned on while
// idle would wait forever for a TrackEnd that will never come.
func (p *Player) SetRepeat(r queue.Repeat) {
	guard := p.lock.Lock()
	defer guard.Unlock()
	p.queue.SetRepeat(r)
	if p.queue.ShouldPlay() {
		failed, err := p.queue.PlayLoadNext()
		p.reportFailed(failed)
		if err == nil {
			if cur := p.queue.Current(); cur != nil {
				p.emitStart(cur.Meta)
			}
		}
	}
}

// Seek restarts the current track at offset. Returns queue.ErrEmpty if
// nothing is playing, or the driver's error if the current track's input
// stream cannot be rewound (most network sources cannot).
func (p *Player) Seek(ctx context.Context, offset time.Duration) error {
	guard := p.lock.Lock()
	defer guard.Unlock()

	cur := p.queue.Current()
	if cur == nil {
		return queue.ErrEmpty
	}
	return cur.Handle.Seek(ctx, offset)
}

// Skip stops the current track and returns its metadata, or nil if nothing
// was playing. Advancement is driven by the resulting TrackEnd event, not
// by Skip itself.
func (p *Player) Skip() *track.Meta {
	guard := p.lock.Lock()
	defer guard.Unlock()

	t := p.queue.Skip()
	if t == nil {
		return nil
	}
	m := t.Meta
	return &m
}

// ClearQueue stops every queued track and drains the queue.
func (p *Player) ClearQueue() {
	guard := p.lock.Lock()
	defer guard.Unlock()
	p.queue.Clear()
}

// ChannelID returns the voice channel this player is currently bound to,
// or 0 if none (set only by PlayerHandler, from driver connect/disconnect
// events).
func (p *Player) ChannelID() uint64 {
	return p.channel.Load()
}

// Destroy disconnects the driver and clears the queue. Idempotent.
func (p *Player) Destroy(ctx context.Context) {
	guard := p.lock.Lock()
	defer guard.Unlock()
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.queue.Clear()
	if err := p.drv.Leave(ctx); err != nil {
		log.Warn().Err(err).Uint64("guild_id", p.GuildID).Msg("player: leave on destroy failed")
	}
}

// Snapshot produces a serializable view of this Player's state.
func (p *Player) Snapshot() Snapshot {
	guard := p.lock.Lock()
	defer guard.Unlock()

	s := Snapshot{
		GuildID:   p.GuildID,
		ChannelID: p.channel.Load(),
		Paused:    p.paused,
		Volume:    p.volume,
	}
	if cur := p.queue.Current(); cur != nil {
		m := cur.Meta
		s.Current = &m
	}
	for _, t := range p.queue.Rest() {
		s.Queue = append(s.Queue, t.Meta)
	}
	return s
}

// advance runs the queue's advance algorithm (called by PlayerHandler on
// TrackEnd) and emits the resulting lifecycle events. Repeat refill, when
// due, happens inside Queue.PlayLoadNext itself.
func (p *Player) advance(endedHandle uint64, stopped bool) {
	guard := p.lock.Lock()
	defer guard.Unlock()

	cur := p.queue.Current()
	if cur == nil || cur.Handle.ID() != endedHandle {
		// Not the slot we think of as playing (a spontaneous/errored
		// preload, or a stale event from a since-replaced handle).
		return
	}
	p.sender.Send(events.TrackEnd(p.GuildID, cur.Meta, stopped))

	failed, err := p.queue.PlayLoadNext()
	p.reportFailed(failed)
	if err != nil {
		log.Warn().Err(err).Uint64("guild_id", p.GuildID).Msg("player: play_next failed, advance loop exhausted")
		return
	}
	if next := p.queue.Current(); next != nil {
		p.emitStart(next.Meta)
	}
}

// reportFailed emits a TrackErrored event for each descriptor the queue
// could not materialize during an advance/refill pass; a single bad URL
// inside a looped playlist must not break the loop.
func (p *Player) reportFailed(failed []track.PlaySource) {
	for _, src := range failed {
		meta := track.Meta{}
		if src.Meta != nil {
			meta = *src.Meta
		}
		p.sender.Send(events.TrackErrored(p.GuildID, meta, "source fetch failed"))
		if p.counters != nil {
			p.counters.TrackErrored()
		}
	}
}

// setChannel is called only by PlayerHandler in response to driver
// connect/disconnect events.
func (p *Player) setChannel(id uint64) {
	p.channel.Store(id)
}
