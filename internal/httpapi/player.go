package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"nightingale/internal/apierr"
	"nightingale/internal/player"
	"nightingale/internal/queue"
	"nightingale/internal/session"
)

// guildParam parses the nonzero guild id from the route path.
func guildParam(c *gin.Context) (uint64, error) {
	raw := c.Param("guild")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apierr.BadRequest(fmt.Sprintf("invalid guild id %q", raw))
	}
	return id, nil
}

// sessionFromPath resolves the :session path segment against the registry.
func (a *API) sessionFromPath(c *gin.Context) (*session.Session, error) {
	return a.sessions.Get(c.Param("session"))
}

// existingPlayer resolves session and guild, requiring the Player to
// already exist.
func (a *API) existingPlayer(c *gin.Context) (*player.Player, error) {
	s, err := a.sessionFromPath(c)
	if err != nil {
		return nil, err
	}
	guild, err := guildParam(c)
	if err != nil {
		return nil, err
	}
	p, ok := s.Playback().Lookup(guild)
	if !ok {
		return nil, apierr.NotPresent(fmt.Sprintf("no player for guild %d", guild))
	}
	return p, nil
}

// playerUpdate connects the player's driver when a body is present, or
// leaves voice when it is absent. The response returns immediately; the
// client should not consider the player connected until the matching
// update_state event arrives.
func (a *API) playerUpdate(c *gin.Context) {
	s, err := a.sessionFromPath(c)
	if err != nil {
		c.Error(err)
		return
	}
	guild, err := guildParam(c)
	if err != nil {
		c.Error(err)
		return
	}
	p := s.Playback().PlayerFor(guild)

	var info *ConnectionInfo
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(apierr.BadRequest("failed to read request body"))
		return
	}
	if len(body) > 0 {
		info = &ConnectionInfo{}
		if err := json.Unmarshal(body, info); err != nil {
			c.Error(apierr.BadRequest(fmt.Sprintf("invalid connection info: %v", err)))
			return
		}
	}

	if info == nil {
		if err := p.Update(c.Request.Context(), nil); err != nil {
			c.Error(apierr.DriverError(err.Error()))
			return
		}
	} else {
		if err := p.Update(c.Request.Context(), info.toDriver(guild)); err != nil {
			c.Error(apierr.DriverError(err.Error()))
			return
		}
	}
	c.Status(http.StatusOK)
}

// playerInfo returns the player's snapshot.
func (a *API) playerInfo(c *gin.Context) {
	p, err := a.existingPlayer(c)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p.Snapshot())
}

// playerPlay enqueues (or force-plays) the provided source and responds
// with the resolved track metadata.
func (a *API) playerPlay(c *gin.Context) {
	s, err := a.sessionFromPath(c)
	if err != nil {
		c.Error(err)
		return
	}
	guild, err := guildParam(c)
	if err != nil {
		c.Error(err)
		return
	}
	p := s.Playback().PlayerFor(guild)

	var opts PlayOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.Error(apierr.BadRequest(fmt.Sprintf("invalid play options: %v", err)))
		return
	}

	src := opts.Source.Descriptor()
	if opts.ForcePlay {
		meta, err := p.PlayNow(c.Request.Context(), src)
		if err != nil {
			c.Error(apierr.SourceError(err.Error()))
			return
		}
		c.JSON(http.StatusOK, meta)
		return
	}
	meta, err := p.Enqueue(c.Request.Context(), src)
	if err != nil {
		c.Error(apierr.SourceError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (a *API) playerPause(c *gin.Context) {
	p, err := a.existingPlayer(c)
	if err != nil {
		c.Error(err)
		return
	}
	p.Pause()
	c.Status(http.StatusOK)
}

func (a *API) playerResume(c *gin.Context) {
	p, err := a.existingPlayer(c)
	if err != nil {
		c.Error(err)
		return
	}
	p.Resume()
	c.Status(http.StatusOK)
}

// playerSetVolume accepts volume as an integer percentage in 0..=512 and
// applies it as an amplitude scale in 0..=5.12.
func (a *API) playerSetVolume(c *gin.Context) {
	p, err := a.existingPlayer(c)
	if err != nil {
		c.Error(err)
		return
	}
	v, err := strconv.Atoi(c.Param("volume"))
	if err != nil || v < 0 || v > 512 {
		c.Error(apierr.BadRequest("Volume must be an integer between 0 and 512"))
		return
	}
	p.SetVolume(float64(v) / 100)
	c.Status(http.StatusOK)
}

// playerSeek seeks the current track to the given millisecond offset.
func (a *API) playerSeek(c *gin.Context) {
	p, err := a.existingPlayer(c)
	if err != nil {
		c.Error(err)
		return
	}
	millis, err := strconv.ParseUint(c.Param("millis"), 10, 64)
	if err != nil {
		c.Error(apierr.BadRequest(fmt.Sprintf("invalid seek position %q", c.Param("millis"))))
		return
	}
	if err := p.Seek(c.Request.Context(), time.Duration(millis)*time.Millisecond); err != nil {
		if errors.Is(err, queue.ErrEmpty) {
			c.Error(apierr.NotPresent("no track currently playing"))
			return
		}
		c.Error(apierr.DriverError(err.Error()))
		return
	}
	c.Status(http.StatusOK)
}

// playerRepeat switches the queue's repeat mode. kind is one of "queue"
// (with an optional finite times) or "none".
func (a *API) playerRepeat(c *gin.Context) {
	p, err := a.existingPlayer(c)
	if err != nil {
		c.Error(err)
		return
	}

	switch kind := c.Query("kind"); kind {
	case "queue":
		r := queue.Repeat{Kind: queue.RepeatInfinite}
		if raw := c.Query("times"); raw != "" {
			times, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || times == 0 {
				c.Error(apierr.BadRequest(fmt.Sprintf("invalid repeat count %q", raw)))
				return
			}
			r = queue.Repeat{Kind: queue.RepeatFinite, Count: uint32(times)}
		}
		p.SetRepeat(r)
	case "none":
		p.SetRepeat(queue.Repeat{Kind: queue.RepeatOff})
	default:
		c.Error(apierr.BadRequest(fmt.Sprintf("unknown repeat kind %q", kind)))
		return
	}
	c.Status(http.StatusOK)
}

// playerSkip stops the current track; advancement rides the resulting
// TrackEnd event. Responds with the skipped track's metadata, if any.
func (a *API) playerSkip(c *gin.Context) {
	p, err := a.existingPlayer(c)
	if err != nil {
		c.Error(err)
		return
	}
	if meta := p.Skip(); meta != nil {
		c.JSON(http.StatusOK, meta)
		return
	}
	c.Status(http.StatusOK)
}

func (a *API) playerClear(c *gin.Context) {
	p, err := a.existingPlayer(c)
	if err != nil {
		c.Error(err)
		return
	}
	p.ClearQueue()
	c.Status(http.StatusOK)
}
