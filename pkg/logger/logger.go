package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes how the process logger is built.
// Level accepts debug/info/warn/error, Environment "prod" selects JSON output.
// File, when set, receives a copy of every record through a rotating writer.
type Config struct {
	Level       string
	Environment string
	WithSource  bool
	File        string
}

var (
	global *slog.Logger
	once   sync.Once
)

// console is where records go besides the optional file. Stdout belongs to the
// progress bar, so logs are kept on stderr.
var console io.Writer = os.Stderr

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + level)
	}
}

// ValidLevel reports whether level is accepted by New.
func ValidLevel(level string) bool {
	_, err := levelFromString(level)
	return err == nil
}

func newRotatingWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

// New builds a logger from cfg without touching the global instance.
func New(cfg Config) (*slog.Logger, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := console
	if cfg.File != "" {
		out = io.MultiWriter(console, newRotatingWriter(cfg.File))
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl, AddSource: cfg.WithSource}
	var handler slog.Handler
	if strings.ToLower(cfg.Environment) == "prod" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler), nil
}

// Init builds the global logger once; later calls return the first instance.
func Init(cfg Config) (*slog.Logger, error) {
	var initErr error
	once.Do(func() {
		global, initErr = New(cfg)
	})
	return global, initErr
}

// L returns the global logger. Init must have been called.
func L() *slog.Logger {
	if global == nil {
		panic("logger.Init must be called before logger.L")
	}
	return global
}

// Phase actions accepted by LogPhase.
const (
	ActionCompleted = "completed"
	ActionFailed    = "failed"
	ActionDegraded  = "degraded"
)

// LogPhase records a pipeline phase event with fixed attribute keys.
// phase: model-load/audio-load/inference/alignment/export/conversion
// action: ActionCompleted/ActionFailed/ActionDegraded
func LogPhase(logger *slog.Logger, phase, action string, durationMs int64, errorCode string) {
	attrs := []slog.Attr{
		slog.String("phase", phase),
		slog.String("action", action),
		slog.Int64("duration_ms", durationMs),
	}

	switch {
	case errorCode != "" && action == ActionDegraded:
		attrs = append(attrs, slog.String("error_code", errorCode))
		logger.LogAttrs(context.Background(), slog.LevelWarn, "Pipeline phase degraded", attrs...)
	case errorCode != "":
		attrs = append(attrs, slog.String("error_code", errorCode))
		logger.LogAttrs(context.Background(), slog.LevelError, "Pipeline phase error", attrs...)
	default:
		logger.LogAttrs(context.Background(), slog.LevelInfo, "Pipeline phase event", attrs...)
	}
}
