package httpapi

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"nightingale/internal/apierr"
	"nightingale/internal/ws"
)

// wsConnect creates a fresh session for the caller and upgrades the
// request into its websocket. The handler blocks for the lifetime of the
// connection; on exit the registry decides between immediate teardown and
// the resume grace window.
func (a *API) wsConnect(c *gin.Context) {
	raw := c.Query("user_id")
	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || userID == 0 {
		c.Error(apierr.BadRequest(fmt.Sprintf("invalid user_id %q", raw)))
		return
	}

	s := a.sessions.Create(userID)
	_, recv, aerr := a.sessions.AttachSocket(s.ID)
	if aerr != nil {
		// Unreachable for a session created one line up, but never worth
		// panicking over.
		c.Error(aerr)
		return
	}

	log.Info().Str("session", s.ID).Uint64("user_id", userID).Msg("httpapi: new session")
	ws.Serve(c, s.ID, false, nil, recv, func() {
		a.sessions.OnSocketExit(s, recv)
	})
}

// wsResume attaches a new socket to an existing session. A second
// concurrent attach returns Conflict; an expired or unknown session
// returns NotPresent.
func (a *API) wsResume(c *gin.Context) {
	id := c.Param("session")
	s, recv, err := a.sessions.AttachSocket(id)
	if err != nil {
		c.Error(err)
		return
	}

	log.Info().Str("session", s.ID).Msg("httpapi: session resumed")
	ws.Serve(c, s.ID, true, s.Playback().Snapshot(), recv, func() {
		a.sessions.OnSocketExit(s, recv)
	})
}
