package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. level is one of debug, info, warn,
// error (default info). When file is non-empty, log lines are also appended
// to it in JSON form. The returned closer releases the file.
func Init(level, file string) (io.Closer, error) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	if file == "" {
		log.Logger = log.Output(console)
		return nopCloser{}, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Logger = log.Output(console)
		return nopCloser{}, fmt.Errorf("open log file %s: %w", file, err)
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, f)).With().Timestamp().Logger()
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
