package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/arkaitz-dev/hashrand-sub000/internal/config"
	"github.com/arkaitz-dev/hashrand-sub000/pkg/log"
	"github.com/arkaitz-dev/hashrand-sub000/server"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

// newLogger builds the pkg/log.Logger named by cfg.Impl, defaulting to
// slog the way cmd/dex/logger.go does, but also honoring "logrus" for
// operators who want the teacher's original formatter.
func newLogger(cfg config.Logger) (log.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Impl) {
	case "", "slog":
		handler, err := newSlogHandler(level, cfg.Format)
		if err != nil {
			return nil, err
		}
		return log.NewSlogLogger(slog.New(newRequestContextHandler(handler))), nil
	case "logrus":
		return log.NewLogrusLogger(newLogrusLogger(level, cfg.Format)), nil
	default:
		return nil, fmt.Errorf("log implementation is not one of the supported values (slog, logrus): %s", cfg.Impl)
	}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log level is not one of the supported values (%s): %s", strings.Join(logLevels, ", "), level)
	}
}

func newSlogHandler(level slog.Level, format string) (slog.Handler, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}), nil
	case "json":
		return slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}), nil
	default:
		return nil, fmt.Errorf("log format is not one of the supported values (%s): %s", strings.Join(logFormats, ", "), format)
	}
}

type utcFormatter struct {
	f logrus.Formatter
}

func (f *utcFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return f.f.Format(e)
}

func newLogrusLogger(level slog.Level, format string) *logrus.Logger {
	var formatter utcFormatter
	switch strings.ToLower(format) {
	case "json":
		formatter.f = &logrus.JSONFormatter{}
	default:
		formatter.f = &logrus.TextFormatter{DisableColors: true}
	}

	logrusLevel := logrus.InfoLevel
	switch level {
	case slog.LevelDebug:
		logrusLevel = logrus.DebugLevel
	case slog.LevelWarn:
		logrusLevel = logrus.WarnLevel
	case slog.LevelError:
		logrusLevel = logrus.ErrorLevel
	}

	return &logrus.Logger{
		Out:       os.Stderr,
		Formatter: &formatter,
		Level:     logrusLevel,
		Hooks:     make(logrus.LevelHooks),
	}
}

var _ slog.Handler = requestContextHandler{}

// requestContextHandler attaches the request ID and remote IP the
// middleware stashes in the request context to a log line whose record
// context carries them, the same way cmd/dex/logger.go's
// requestContextHandler does. pkg/log.SlogLogger logs with no request
// context, so lines written through it carry neither field.
type requestContextHandler struct {
	handler slog.Handler
}

func newRequestContextHandler(handler slog.Handler) slog.Handler {
	return requestContextHandler{handler: handler}
}

func (h requestContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h requestContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if v, ok := ctx.Value(server.RequestKeyRemoteIP).(string); ok {
		record.AddAttrs(slog.String(string(server.RequestKeyRemoteIP), v))
	}
	if v, ok := ctx.Value(server.RequestKeyRequestID).(string); ok {
		record.AddAttrs(slog.String(string(server.RequestKeyRequestID), v))
	}
	return h.handler.Handle(ctx, record)
}

func (h requestContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestContextHandler{h.handler.WithAttrs(attrs)}
}

func (h requestContextHandler) WithGroup(name string) slog.Handler {
	return h.handler.WithGroup(name)
}
