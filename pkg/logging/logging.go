// Package logging provides component-tagged structured logging for the
// converter. Nothing in the tick interrupt path may log.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	ComponentBus     Component = "bus"
	ComponentEngine  Component = "engine"
	ComponentBridge  Component = "bridge"
	ComponentStorage Component = "storage"
	ComponentSerial  Component = "serial"
	ComponentBoard   Component = "board"
)

var (
	// DefaultLogger is the logger used by the package level helpers.
	DefaultLogger *slog.Logger

	level = new(slog.LevelVar)

	mu sync.RWMutex
)

func init() {
	level.Set(slog.LevelInfo)
	DefaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// SetLevel sets the minimum level for every logger created by this package.
func SetLevel(l slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(l)
}

// Level returns the current minimum level.
func Level() slog.Level {
	mu.RLock()
	defer mu.RUnlock()
	return level.Level()
}

// SetLogger replaces the default logger.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	DefaultLogger = l
}

// New creates a text logger writing to w. A nil opts uses the package level.
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: level}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return DefaultLogger
}

// Enabled reports whether the default logger emits records at l. Hot paths
// check it before building debug attributes.
func Enabled(l slog.Level) bool {
	return logger().Enabled(context.Background(), l)
}

func Debug(c Component, msg string, args ...any) {
	l := logger()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.Debug(msg, append([]any{"component", string(c)}, args...)...)
}

func Info(c Component, msg string, args ...any) {
	logger().Info(msg, append([]any{"component", string(c)}, args...)...)
}

func Warn(c Component, msg string, args ...any) {
	logger().Warn(msg, append([]any{"component", string(c)}, args...)...)
}

func Error(c Component, msg string, args ...any) {
	logger().Error(msg, append([]any{"component", string(c)}, args...)...)
}
