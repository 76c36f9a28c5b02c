// Package deps verifies that the external binaries Nightingale shells out
// to (yt-dlp for link extraction, ffmpeg for the local driver's transcode
// pipeline) are present on PATH before the server starts taking traffic.
package deps

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// Checker verifies that required external binaries are available.
type Checker struct {
	dependencies []string
}

// NewChecker creates a checker for the given binary names.
func NewChecker(deps ...string) *Checker {
	return &Checker{dependencies: deps}
}

// CheckAll verifies all dependencies are available, returning an error
// listing every missing one.
func (c *Checker) CheckAll() error {
	var missing []string
	for _, dep := range c.dependencies {
		if !c.IsAvailable(dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return &MissingDepsError{Dependencies: missing}
	}
	return nil
}

// IsAvailable checks whether a single binary is on PATH.
func (c *Checker) IsAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// CheckAndLog checks all dependencies, logging one line per binary, and
// returns an error if any are missing.
func (c *Checker) CheckAndLog() error {
	var missing []string
	for _, dep := range c.dependencies {
		if c.IsAvailable(dep) {
			log.Debug().Str("binary", dep).Msg("deps: found")
		} else {
			log.Warn().Str("binary", dep).Msg("deps: not found in PATH")
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return &MissingDepsError{Dependencies: missing}
	}
	return nil
}

// MissingDepsError is returned when required binaries are missing.
type MissingDepsError struct {
	Dependencies []string
}

func (e *MissingDepsError) Error() string {
	return fmt.Sprintf("missing dependencies: %v", e.Dependencies)
}
