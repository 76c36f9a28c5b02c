package httpapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"nightingale/internal/player"
)

// SystemInfo is the process-level half of the info payload.
type SystemInfo struct {
	UptimeMS   int64  `json:"uptime_ms"`
	GoVersion  string `json:"go_version"`
	HeapBytes  uint64 `json:"heap_bytes"`
	SysBytes   uint64 `json:"sys_bytes"`
	Goroutines int    `json:"goroutines"`
	CPUs       int    `json:"cpus"`
}

// PlaybackOverview is the playback half of the info payload.
type PlaybackOverview struct {
	Sessions int `json:"sessions"`
	Players  int `json:"players"`
}

// InfoResponse is the body of GET /api/v1/info[/:session].
type InfoResponse struct {
	System   SystemInfo        `json:"system"`
	Playback PlaybackOverview  `json:"playback"`
	Players  []player.Snapshot `json:"players,omitempty"`
}

// info reports process and playback state; with a :session path segment it
// additionally includes that session's player snapshots.
func (a *API) info(c *gin.Context) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	resp := InfoResponse{
		System: SystemInfo{
			UptimeMS:   time.Since(a.started).Milliseconds(),
			GoVersion:  runtime.Version(),
			HeapBytes:  stats.Alloc,
			SysBytes:   stats.Sys,
			Goroutines: runtime.NumGoroutine(),
			CPUs:       runtime.NumCPU(),
		},
		Playback: PlaybackOverview{
			Sessions: a.sessions.Count(),
			Players:  a.sessions.PlayerCount(),
		},
	}

	if id := c.Param("session"); id != "" {
		s, err := a.sessions.Get(id)
		if err != nil {
			c.Error(err)
			return
		}
		resp.Players = s.Playback().Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}
