// Package metrics exposes Nightingale's Prometheus collectors against a
// private registry, so tests never leak state into the global default
// registry the way promauto's package-level vars would. A background
// ticker samples runtime.MemStats into the system gauges.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector this process exports, registered against
// its own Registry.
type Metrics struct {
	Registry *prometheus.Registry

	SessionsActive    prometheus.Gauge
	PlayersActive     prometheus.Gauge
	TracksStartedTotal prometheus.Counter
	TracksErroredTotal prometheus.Counter
	RAMBytes          prometheus.Gauge
	Goroutines        prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nightingale_sessions_active",
			Help: "Number of sessions currently registered.",
		}),
		PlayersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nightingale_players_active",
			Help: "Number of Players currently alive across all sessions.",
		}),
		TracksStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nightingale_tracks_started_total",
			Help: "Total number of TrackStart events emitted.",
		}),
		TracksErroredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nightingale_tracks_errored_total",
			Help: "Total number of TrackErrored events emitted.",
		}),
		RAMBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nightingale_ram_bytes",
			Help: "Resident heap bytes, sampled from runtime.MemStats.",
		}),
		Goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nightingale_goroutines",
			Help: "Current goroutine count.",
		}),
	}

	reg.MustRegister(
		m.SessionsActive,
		m.PlayersActive,
		m.TracksStartedTotal,
		m.TracksErroredTotal,
		m.RAMBytes,
		m.Goroutines,
	)
	return m
}

// TrackStarted bumps the started-tracks counter. Together with
// TrackErrored it satisfies the player package's Counters interface.
func (m *Metrics) TrackStarted() { m.TracksStartedTotal.Inc() }

// TrackErrored bumps the errored-tracks counter.
func (m *Metrics) TrackErrored() { m.TracksErroredTotal.Inc() }

// SampleSystem starts a background ticker sampling runtime.MemStats and
// goroutine count every interval, stopping when ctx is cancelled.
func (m *Metrics) SampleSystem(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			m.RAMBytes.Set(float64(stats.Alloc))
			m.Goroutines.Set(float64(runtime.NumGoroutine()))
		}
	}
}
