package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nightingale/internal/apierr"
	"nightingale/internal/deezer"
	"nightingale/internal/source/youtube"
)

// youtubeSearch handles GET /api/v1/search/youtube/search?query=.
func (a *API) youtubeSearch(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.Error(apierr.BadRequest("query parameter is required"))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.Error(apierr.BadRequest(fmt.Sprintf("invalid limit %q", raw)))
			return
		}
		limit = n
	}

	results, err := youtube.Search(c.Request.Context(), query, limit)
	if err != nil {
		c.Error(apierr.SourceError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, results)
}

// youtubePlaylist handles GET /api/v1/search/youtube/playlist?playlist=.
func (a *API) youtubePlaylist(c *gin.Context) {
	playlist := c.Query("playlist")
	if playlist == "" {
		c.Error(apierr.BadRequest("playlist parameter is required"))
		return
	}

	entries, err := youtube.ExtractPlaylist(c.Request.Context(), playlist)
	if err != nil {
		c.Error(apierr.SourceError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, entries)
}

// deezerSearch handles GET /api/v1/search/deezer/search with exactly one
// of query, id, or isrc.
func (a *API) deezerSearch(c *gin.Context) {
	query, id, isrc := c.Query("query"), c.Query("id"), c.Query("isrc")
	provided := 0
	for _, v := range []string{query, id, isrc} {
		if v != "" {
			provided++
		}
	}
	switch {
	case provided == 0:
		c.Error(apierr.BadRequest("none of `query`, `id` and `isrc` provided"))
		return
	case provided > 1:
		c.Error(apierr.BadRequest("`query`, `id` and `isrc` are mutually exclusive"))
		return
	}
	if a.deezer == nil {
		c.Error(apierr.SourceError("deezer is not configured"))
		return
	}

	switch {
	case query != "":
		tracks, err := a.deezer.Search(c.Request.Context(), query)
		if err != nil {
			c.Error(apierr.SourceError(err.Error()))
			return
		}
		c.JSON(http.StatusOK, tracks)
	case id != "":
		trackID, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			c.Error(apierr.BadRequest(fmt.Sprintf("invalid track id %q", id)))
			return
		}
		t, err := a.deezer.GetTrack(c.Request.Context(), trackID)
		if err != nil {
			c.Error(apierr.SourceError(err.Error()))
			return
		}
		c.JSON(http.StatusOK, []deezer.Track{t})
	default:
		t, err := a.deezer.GetTrackByISRC(c.Request.Context(), isrc)
		if err != nil {
			c.Error(apierr.SourceError(err.Error()))
			return
		}
		c.JSON(http.StatusOK, []deezer.Track{t})
	}
}

// deezerPlaylist handles GET /api/v1/search/deezer/playlist?playlist=<id>.
func (a *API) deezerPlaylist(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("playlist"), 10, 64)
	if err != nil {
		c.Error(apierr.BadRequest(fmt.Sprintf("invalid playlist id %q", c.Query("playlist"))))
		return
	}
	if a.deezer == nil {
		c.Error(apierr.SourceError("deezer is not configured"))
		return
	}

	pl, err := a.deezer.GetPlaylist(c.Request.Context(), id)
	if err != nil {
		c.Error(apierr.SourceError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, pl)
}

// deezerAlbum handles GET /api/v1/search/deezer/album?album=<id>.
func (a *API) deezerAlbum(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("album"), 10, 64)
	if err != nil {
		c.Error(apierr.BadRequest(fmt.Sprintf("invalid album id %q", c.Query("album"))))
		return
	}
	if a.deezer == nil {
		c.Error(apierr.SourceError("deezer is not configured"))
		return
	}

	album, err := a.deezer.GetAlbum(c.Request.Context(), id)
	if err != nil {
		c.Error(apierr.SourceError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, album)
}
