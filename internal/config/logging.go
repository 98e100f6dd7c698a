package config

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging routes the standard logger. In prod mode output also goes to a
// rotating file.
func SetupLogging(cfg *Config) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if !cfg.IsProd() || cfg.Log.File == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		log.Printf("⚠️ Log directory unavailable, logging to stdout only: %v", err)
		return nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	log.Printf("✅ Logging to %s", cfg.Log.File)
	return rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
