// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// Logger is the leveled key/value logger used across the project.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)

	// New returns a child logger with the given context attached.
	New(ctx ...any) Logger
}

// LevelTrace is finer-grained than slog's lowest standard level.
const LevelTrace = slog.Level(-8)

// handlerBox keeps the stored concrete type consistent, as required by
// atomic.Value.
type handlerBox struct{ h slog.Handler }

var root atomic.Value // holds handlerBox

func init() {
	root.Store(handlerBox{DiscardHandler()})
}

// SetDefault sets the default global handler. Loggers derived before the
// call pick the new handler up as well: every logger resolves the
// handler at write time.
func SetDefault(h slog.Handler) {
	root.Store(handlerBox{h})
}

// Root returns the root logger.
func Root() Logger {
	return &logger{}
}

// WithContext returns a logger scoped with the given context, e.g.
// WithContext("pkg", "registry").
func WithContext(ctx ...any) Logger {
	return Root().New(ctx...)
}

type logger struct {
	ctx []any
}

func (l *logger) write(level slog.Level, msg string, ctx ...any) {
	h := root.Load().(handlerBox).h
	if !h.Enabled(context.Background(), level) {
		return
	}
	record := slog.NewRecord(time.Now(), level, msg, 0)
	record.Add(l.ctx...)
	record.Add(ctx...)
	_ = h.Handle(context.Background(), record)
}

func (l *logger) Trace(msg string, ctx ...any) { l.write(LevelTrace, msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...any) { l.write(slog.LevelDebug, msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.write(slog.LevelInfo, msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.write(slog.LevelWarn, msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.write(slog.LevelError, msg, ctx...) }

func (l *logger) New(ctx ...any) Logger {
	child := make([]any, 0, len(l.ctx)+len(ctx))
	child = append(child, l.ctx...)
	child = append(child, ctx...)
	return &logger{ctx: child}
}

// DiscardHandler returns a no-op handler.
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

type discardHandler struct{}

func (h *discardHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h *discardHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (h *discardHandler) WithGroup(_ string) slog.Handler               { return h }
func (h *discardHandler) WithAttrs(_ []slog.Attr) slog.Handler          { return h }

// NewTextHandler returns a handler writing human-readable lines to stderr
// at the given minimum level. colored selects ANSI coloring of levels.
func NewTextHandler(level slog.Level, colored bool) slog.Handler {
	replaceAttr := func(_ []string, attr slog.Attr) slog.Attr {
		if attr.Key == slog.LevelKey {
			lvl := attr.Value.Any().(slog.Level)
			attr.Value = slog.StringValue(levelString(lvl, colored))
		}
		return attr
	}
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	})
}

func levelString(lvl slog.Level, colored bool) string {
	var str, color string
	switch {
	case lvl <= LevelTrace:
		str, color = "TRACE", "\x1b[36m"
	case lvl <= slog.LevelDebug:
		str, color = "DEBUG", "\x1b[36m"
	case lvl <= slog.LevelInfo:
		str, color = "INFO", "\x1b[32m"
	case lvl <= slog.LevelWarn:
		str, color = "WARN", "\x1b[33m"
	default:
		str, color = "ERROR", "\x1b[31m"
	}
	if colored {
		return color + str + "\x1b[0m"
	}
	return str
}
