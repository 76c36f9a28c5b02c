package player

import (
	"github.com/rs/zerolog/log"

	"nightingale/internal/driver"
	"nightingale/internal/events"
)

// Handler is the driver-event sink: one instance per Player, consuming
// drv.Events() for as long as the Player lives and translating
// TrackEnd/DriverConnect/DriverReconnect/DriverDisconnect into Player
// state transitions and UpdateState events.
type Handler struct {
	player *Player
	drv    driver.Driver
	sender events.Sender

	stop chan struct{}
}

// NewHandler creates and starts a Handler for p, consuming drv's event
// channel in a background goroutine until Stop is called.
func NewHandler(p *Player, drv driver.Driver, sender events.Sender) *Handler {
	h := &Handler{player: p, drv: drv, sender: sender, stop: make(chan struct{})}
	go h.run()
	return h
}

// Stop detaches the handler from the driver's event stream. Destroy calls
// this; it does not stop the driver itself.
func (h *Handler) Stop() {
	close(h.stop)
}

func (h *Handler) run() {
	for {
		select {
		case <-h.stop:
			return
		case ev, ok := <-h.drv.Events():
			if !ok {
				return
			}
			h.handle(ev)
		}
	}
}

func (h *Handler) handle(ev driver.Event) {
	switch ev.Kind {
	case driver.TrackEnd:
		h.player.advance(ev.Handle, ev.Stopped)
	case driver.DriverConnect:
		h.player.setChannel(ev.ChannelID)
		h.sender.Send(events.UpdateState(h.player.GuildID, events.StateConnectGateway))
	case driver.DriverReconnect:
		h.player.setChannel(ev.ChannelID)
		h.sender.Send(events.UpdateState(h.player.GuildID, events.StateReconnectGateway))
	case driver.DriverDisconnect:
		h.player.setChannel(0)
		h.sender.Send(events.UpdateState(h.player.GuildID, events.StateDisconnectGateway))
	default:
		log.Warn().Int("kind", int(ev.Kind)).Msg("player: unknown driver event kind")
	}
}
