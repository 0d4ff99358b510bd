// Package logging sets up the structured logger of mzxic, optionally
// writing to a rotated log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Environment variables read by FromEnv
const (
	EnvLevel = "MZXIC_LOG_LEVEL"
	EnvFile  = "MZXIC_LOG_FILE"
)

// Config holds logging configuration.
type Config struct {
	Level      string    // Log level: debug, info, warn, error
	FilePath   string    // Path to log file (empty = Stderr only)
	MaxSizeMB  int       // Max size in MB before rotation
	MaxBackups int       // Max number of old log files to retain
	MaxAgeDays int       // Max age in days to retain old log files
	Compress   bool      // Whether to compress rotated files
	Stderr     io.Writer // Output when no file is set, os.Stderr if nil
}

// DefaultConfig returns the defaults for logging.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// FromEnv returns the default configuration, with level and file path
// taken from the environment when set
func FromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvLevel); v != "" {
		cfg.Level = v
	}
	cfg.FilePath = os.Getenv(EnvFile)
	return cfg
}

// Setup creates a logger for cfg and installs it as the slog default.
// The returned cleanup function closes the log file, if any.
func Setup(cfg Config) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var writer io.Writer
	cleanup := func() error { return nil }

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		writer = lj
		cleanup = lj.Close
	} else if cfg.Stderr != nil {
		writer = cfg.Stderr
	} else {
		writer = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(writer, opts))
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// ParseLevel converts a level name to a slog level, info if unknown
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
