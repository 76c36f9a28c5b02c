// Package httpapi exposes Nightingale's HTTP control surface: the
// websocket entry points, the per-player routes, the search endpoints,
// and the info/prometheus probes. Handlers translate requests into calls
// against the session/player runtime and report failures through the
// apierr middleware.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nightingale/internal/apierr"
	"nightingale/internal/config"
	"nightingale/internal/deezer"
	"nightingale/internal/metrics"
	"nightingale/internal/session"
)

// API carries everything the handlers need: the session registry, the
// Deezer client backing the search routes, the metrics registry, and the
// server config the middleware enforces.
type API struct {
	sessions *session.Registry
	deezer   *deezer.Client
	metrics  *metrics.Metrics
	cfg      config.ServerConfig
	started  time.Time
}

// New builds the API. deezerClient may be nil, in which case the Deezer
// search routes report a source error instead of panicking.
func New(sessions *session.Registry, deezerClient *deezer.Client, m *metrics.Metrics, cfg config.ServerConfig) *API {
	return &API{
		sessions: sessions,
		deezer:   deezerClient,
		metrics:  m,
		cfg:      cfg,
		started:  time.Now(),
	}
}

// Router assembles the gin engine: recovery first, then the IP filter,
// then auth, then the error-translation middleware, then every route.
func (a *API) Router() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	if a.cfg.FilterIPs != nil {
		filter, err := IPFilter(a.cfg.FilterIPs)
		if err != nil {
			return nil, err
		}
		r.Use(filter)
	}
	r.Use(RequireAuth(a.cfg.Password))
	r.Use(apierr.Middleware())

	r.GET("/ws", a.wsConnect)
	r.GET("/ws/resume/:session", a.wsResume)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/info", a.info)
		v1.GET("/info/:session", a.info)
		v1.GET("/prometheus", gin.WrapH(promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{})))

		yt := v1.Group("/search/youtube")
		{
			yt.GET("/search", a.youtubeSearch)
			yt.GET("/playlist", a.youtubePlaylist)
		}
		dz := v1.Group("/search/deezer")
		{
			dz.GET("/search", a.deezerSearch)
			dz.GET("/playlist", a.deezerPlaylist)
			dz.GET("/album", a.deezerAlbum)
		}
	}

	players := r.Group("/:session/players/:guild")
	{
		players.PATCH("/update", a.playerUpdate)
		players.GET("/info", a.playerInfo)
		players.POST("/play", a.playerPlay)
		players.PATCH("/pause", a.playerPause)
		players.PATCH("/resume", a.playerResume)
		players.PATCH("/set_volume/:volume", a.playerSetVolume)
		players.PATCH("/seek/:millis", a.playerSeek)
		players.PATCH("/repeat", a.playerRepeat)
		players.PATCH("/skip", a.playerSkip)
		players.PATCH("/clear", a.playerClear)
	}

	return r, nil
}
