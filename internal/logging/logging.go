// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/router-for-me/SIMReseller/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup applies level, format and output settings to the standard logrus logger.
// The returned closer releases the rotating log file, if one was opened.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	level := log.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, errParse := log.ParseLevel(raw)
		if errParse != nil {
			return nil, errParse
		}
		level = parsed
	}
	log.SetLevel(level)

	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	path := strings.TrimSpace(cfg.File)
	if path == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	rotator := newRotator(path, cfg)
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator, nil
}

// nopCloser is returned when logs only go to stdout.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newRotator builds a lumberjack writer with defaults for unset limits.
func newRotator(path string, cfg config.LoggingConfig) *lumberjack.Logger {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 30
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}
}
