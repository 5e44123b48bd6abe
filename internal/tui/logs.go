package tui

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// LogHandler is a slog.Handler that mirrors records into the debug pane.
// Records are queued and forwarded by Forward; when the queue is full they
// are dropped so logging never blocks the update loop.
type LogHandler struct {
	level slog.Leveler
	attrs []slog.Attr
	queue chan string
}

// NewLogHandler creates a handler for records at or above level.
func NewLogHandler(level slog.Leveler) *LogHandler {
	return &LogHandler{level: level, queue: make(chan string, 256)}
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	write := func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value.String())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)

	select {
	case h.queue <- b.String():
	default:
	}
	return nil
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		level: h.level,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
		queue: h.queue,
	}
}

// WithGroup is not rendered in the debug pane; groups are flattened.
func (h *LogHandler) WithGroup(string) slog.Handler {
	return h
}

// Forward posts queued lines to p until ctx is done.
func (h *LogHandler) Forward(ctx context.Context, p sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-h.queue:
			p.Send(logMsg{Text: line})
		}
	}
}

// logBuffer keeps the most recent debug lines.
type logBuffer struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func newLogBuffer(limit int) *logBuffer {
	return &logBuffer{limit: limit}
}

func (b *logBuffer) add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.limit {
		b.lines = b.lines[len(b.lines)-b.limit:]
	}
}

func (b *logBuffer) tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.lines) {
		n = len(b.lines)
	}
	return append([]string(nil), b.lines[len(b.lines)-n:]...)
}

func (b *logBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
