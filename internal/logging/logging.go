// Package logging configures the process-wide zerolog logger from the
// [logging] config table.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nightingale/internal/config"
)

// Setup installs the global zerolog logger per cfg. When cfg.Enable is
// false, logging is silenced entirely (output discarded).
func Setup(cfg config.LoggingConfig) error {
	if !cfg.Enable {
		log.Logger = zerolog.New(io.Discard)
		return nil
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("logging: invalid level %q: %w", cfg.Level, err)
	}

	var out io.Writer
	switch cfg.Output {
	case "file":
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("logging: open %s: %w", cfg.File, err)
		}
		out = f
	case "stdout", "":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	default:
		return fmt.Errorf("logging: unknown output %q", cfg.Output)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}
