package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"nightingale/internal/config"
	"nightingale/internal/deezer"
	"nightingale/internal/driver"
	"nightingale/internal/httpapi"
	"nightingale/internal/logging"
	"nightingale/internal/metrics"
	"nightingale/internal/session"
	"nightingale/internal/source"
	"nightingale/internal/source/external"
	"nightingale/internal/source/httpsource"
	"nightingale/internal/source/youtube"
	"nightingale/pkg/deps"
)

func main() {
	configPath := flag.String("config", "nightingale.toml", "path to the TOML configuration file")
	enableResume := flag.Bool("resume", true, "keep sessions alive for the resume window after a socket closes")
	resumeTimeout := flag.Duration("resume-timeout", 60*time.Second, "resume grace window")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// ffmpeg backs the local driver, yt-dlp the link extractors. Missing
	// binaries only cripple their own source kinds, so warn instead of
	// refusing to start.
	checker := deps.NewChecker("yt-dlp", "ffmpeg")
	if err := checker.CheckAndLog(); err != nil {
		log.Warn().Err(err).Msg("some sources will be unavailable")
	}
	youtube.LoadConfigFromEnv()

	deezerClient := deezer.NewClient(nil)
	sources := source.New(
		youtube.New(),
		external.New(),
		httpsource.New(),
		deezer.New(deezerClient),
	)

	m := metrics.New()

	sessions := session.New(sources, func(guildID uint64) driver.Driver {
		return driver.NewLocalDriver(driver.DefaultLocalConfig())
	}, session.Options{
		EnableResume: *enableResume,
		Timeout:      *resumeTimeout,
	})
	sessions.SetPlayerCounters(m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(cfg.Metrics.UpdateSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go m.SampleSystem(ctx, interval)
	go samplePlayback(ctx, m, sessions, interval)

	api := httpapi.New(sessions, deezerClient, m, cfg.Server)
	router, err := api.Router()
	if err != nil {
		log.Fatal().Err(err).Msg("building router")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if cfg.Server.SSL != nil {
		log.Info().Str("addr", addr).Msg("starting HTTPS server")
		err = srv.ListenAndServeTLS(cfg.Server.SSL.CertPath, cfg.Server.SSL.KeyPath)
	} else {
		log.Info().Str("addr", addr).Msg("starting HTTP server")
		err = srv.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// samplePlayback feeds the session/player gauges on the same cadence as
// the system sampler.
func samplePlayback(ctx context.Context, m *metrics.Metrics, sessions *session.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SessionsActive.Set(float64(sessions.Count()))
			m.PlayersActive.Set(float64(sessions.PlayerCount()))
		}
	}
}
