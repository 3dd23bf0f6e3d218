// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const consoleTimeFormat = "2006-01-02 15:04:05"

// Options selects where and how much to log.
type Options struct {
	Level      zerolog.Level
	File       string // Rotated JSON log file, empty for console only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup points the global logger at the console and, when configured, a
// rotated log file. The returned closer releases the file.
func Setup(console io.Writer, opts Options) (io.Closer, error) {
	zerolog.SetGlobalLevel(opts.Level)

	var writers []io.Writer
	writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: consoleTimeFormat})

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 64),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		writers = append(writers, rotator)
		closer = rotator
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return closer, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
