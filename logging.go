package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"text"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"10"`
	MaxBackups int    `yaml:"max_backups" default:"5"`
}

// NewLogger builds the process logger once at startup. Components receive
// entries derived from it instead of using the logrus package logger.
func NewLogger(cfg LogConfig, stderr io.Writer) (*log.Logger, io.Closer, error) {
	logger := log.New()

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, &ConfigError{Field: "log.level", Err: err}
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, nil, &ConfigError{Field: "log.format", Err: fmt.Errorf("unknown format %q", cfg.Format)}
	}

	if cfg.File == "" {
		logger.SetOutput(stderr)
		return logger, io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, &ConfigError{Field: "log.file", Err: err}
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	logger.SetOutput(io.MultiWriter(stderr, rotator))

	return logger, rotator, nil
}
