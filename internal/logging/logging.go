package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Configure sets up the standard logrus logger: level and format from cfg,
// plus a rotating file copy of every entry when a file path is set.
func Configure(cfg models.LoggingConfig, stderr io.Writer) error {
	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	log.SetLevel(level)

	if stderr == nil {
		stderr = os.Stderr
	}
	log.SetOutput(stderr)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}

	if cfg.FilePath != "" {
		log.AddHook(FileHook(cfg))
	}
	return nil
}

// FileHook writes all levels to a lumberjack-rotated file.
func FileHook(cfg models.LoggingConfig) log.Hook {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
	return lfshook.NewHook(lfshook.WriterMap{
		log.PanicLevel: rotator,
		log.FatalLevel: rotator,
		log.ErrorLevel: rotator,
		log.WarnLevel:  rotator,
		log.InfoLevel:  rotator,
		log.DebugLevel: rotator,
		log.TraceLevel: rotator,
	}, fileFmt)
}

// Component returns the standard logger tagged with a component name.
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}
