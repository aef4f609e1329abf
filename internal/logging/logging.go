// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment overrides, applied on top of Options.
const (
	EnvLevel   = "RFREMOTE_LOG_LEVEL"
	EnvFormat  = "RFREMOTE_LOG_FORMAT"
	EnvNoColor = "RFREMOTE_LOG_NOCOLOR"
)

// Options selects the log level and output format ("console" or "json").
type Options struct {
	Level   string
	Format  string
	NoColor bool
}

// Init installs the global logger writing to out and returns it.
func Init(out io.Writer, opts Options) (zerolog.Logger, error) {
	opts = withEnv(opts)

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("invalid log level %q", opts.Level)
		}
		level = parsed
	}

	var w io.Writer
	switch strings.ToLower(opts.Format) {
	case "", "console":
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}
	case "json":
		w = out
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid log format %q (want console or json)", opts.Format)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Str("app", "rfremote").Logger()
	log.Logger = logger
	return logger, nil
}

func withEnv(opts Options) Options {
	if v := strings.TrimSpace(os.Getenv(EnvLevel)); v != "" {
		opts.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFormat)); v != "" {
		opts.Format = v
	}
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		opts.NoColor = true
	}
	return opts
}
