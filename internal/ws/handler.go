// Package ws implements the per-connection bridge between a client
// socket, a session's outgoing event channel, and an abort signal. One
// handler serves exactly one attached socket for exactly as long as that
// socket is connected.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"nightingale/internal/abort"
	"nightingale/internal/events"
	"nightingale/internal/player"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Serve upgrades req/resp to a websocket and runs the connection's main
// loop until the socket closes or fails, then detaches recv from sess so
// the registry can start (or skip) the resume reaper. sessionID and
// resumed describe the Ready frame sent immediately after upgrade;
// snapshot is non-nil only when resumed is true.
func Serve(c *gin.Context, sessionID string, resumed bool, snapshot []player.Snapshot, recv *events.Receiver, onExit func()) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ws: upgrade failed")
		onExit()
		return
	}
	defer conn.Close()
	defer onExit()

	var sig abort.Signal

	var players any
	if resumed {
		players = snapshot
	}
	if !writeEnvelope(conn, events.Ready(sessionID, resumed, players)) {
		return
	}

	// The protocol has no client-to-server commands; all control is HTTP.
	// The read side does nothing but watch for Close frames and transport
	// errors, firing the abort signal on either.
	go readLoop(conn, &sig)

	runLoop(conn, recv, &sig)
}

// readLoop drains inbound frames until the connection fails or the peer
// sends Close, firing sig in either case. Pongs and any other frame kind
// are discarded.
func readLoop(conn *websocket.Conn, sig *abort.Signal) {
	defer sig.Fire()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// runLoop services the connection with abort taking priority over
// outgoing events: Recv blocks on a context cancelled the moment sig
// fires, so a pending abort always wins over a queued envelope.
func runLoop(conn *websocket.Conn, recv *events.Receiver, sig *abort.Signal) {
	ctx, cancel := abortContext(sig)
	defer cancel()

	for {
		env, ok := recv.Recv(ctx)
		if !ok {
			// Either the receiver's Chan closed (session torn down) or ctx
			// was cancelled because sig fired; either way, exit.
			return
		}
		if !writeEnvelope(conn, env) {
			sig.Fire()
			return
		}
	}
}

// abortContext returns a context cancelled the moment sig fires, so a
// blocking Recv can be interrupted by the read-side's abort signal instead
// of polling.
func abortContext(sig *abort.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sig.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func writeEnvelope(conn *websocket.Conn, env events.Envelope) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(env); err != nil {
		log.Debug().Err(err).Msg("ws: write failed, aborting connection")
		return false
	}
	return true
}
