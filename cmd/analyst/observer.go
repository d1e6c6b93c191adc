package main

import (
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/John-Robertt/analyst/internal/task"
)

var _ task.Observer = logObserver{}

// logObserver 把管线事件写成结构化日志（stderr），不污染 stdout 的 JSON 契约。
type logObserver struct {
	log *slog.Logger
}

func (o logObserver) OnDispatched(handler string) {
	o.log.Info("task dispatched", "handler", handler)
}

func (o logObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, 2*len(keys)+4)
	args = append(args, "phase", name)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	args = append(args, "dur", dur)
	o.log.Info("phase done", args...)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch strings.ToLower(level) {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
