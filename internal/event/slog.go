package event

import (
	"context"
	"log/slog"
	"sort"
)

// SlogRecorder writes events as structured log records.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder creates a recorder logging to logger.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	return &SlogRecorder{logger: logger}
}

// Record implements Recorder. Failures are logged at error level, per-state
// bookkeeping at debug level and everything else at info level.
func (r *SlogRecorder) Record(ctx context.Context, e Event) {
	level := slog.LevelInfo
	switch e.Kind {
	case TaskFailed:
		level = slog.LevelError
	case State, ResourceLoaded:
		level = slog.LevelDebug
	}
	if e.Kind == RunFinished && e.Err != nil {
		level = slog.LevelError
	}

	attrs := []slog.Attr{slog.String("event", string(e.Kind))}
	if e.RunID != "" {
		attrs = append(attrs, slog.String("run_id", e.RunID))
	}
	if e.Task != "" {
		attrs = append(attrs, slog.String("task", e.Task))
	}
	if e.Resource != "" {
		attrs = append(attrs, slog.String("resource", e.Resource))
	}
	if e.Location != "" {
		attrs = append(attrs, slog.String("location", e.Location))
	}
	if e.Tasks != nil {
		attrs = append(attrs, slog.Any("tasks", e.Tasks))
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Fields[k]))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	r.logger.LogAttrs(ctx, level, msg, attrs...)
}
