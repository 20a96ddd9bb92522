// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. format is "console" or "json".
func Setup(level, format string) error {
	return SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	var out io.Writer
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
		out = w
	default:
		return errors.Errorf("invalid LOG_FORMAT value %q", format)
	}

	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// ParseLevel accepts zerolog level names; empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "invalid LOG_LEVEL value %q", level)
	}
	return lvl, nil
}
