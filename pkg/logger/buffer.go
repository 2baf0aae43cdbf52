package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultBufferCapacity = 1000

// RingBuffer keeps the most recent formatted log lines.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []string
	start   int
	count   int
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}
	return &RingBuffer{entries: make([]string, capacity)}
}

func (b *RingBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.entries)
	if b.count < capacity {
		b.entries[(b.start+b.count)%capacity] = line
		b.count++
		return
	}
	b.entries[b.start] = line
	b.start = (b.start + 1) % capacity
}

// GetLast returns up to n lines, oldest first. n <= 0 means all of them.
func (b *RingBuffer) GetLast(n int) []string {
	return b.GetMatching(n, "")
}

// GetMatching returns up to n of the most recent lines containing substr, oldest first.
func (b *RingBuffer) GetMatching(n int, substr string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	capacity := len(b.entries)
	matched := make([]string, 0, min(b.count, max(n, 0)))
	for i := b.count - 1; i >= 0; i-- {
		line := b.entries[(b.start+i)%capacity]
		if substr != "" && !strings.Contains(line, substr) {
			continue
		}
		matched = append(matched, line)
		if n > 0 && len(matched) == n {
			break
		}
	}
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}

func (b *RingBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *RingBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// bufferingHandler writes every record to next and a one-line rendering to the buffer.
// Attributes bound with With and WithGroup are kept in the rendering.
type bufferingHandler struct {
	next   slog.Handler
	buffer *RingBuffer
	bound  string
	group  string
}

func newBufferingHandler(next slog.Handler, buffer *RingBuffer) slog.Handler {
	return &bufferingHandler{next: next, buffer: buffer}
}

func (h *bufferingHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h *bufferingHandler) Handle(ctx context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var sb strings.Builder
	sb.WriteString(ts.Format(time.RFC3339))
	sb.WriteByte(' ')
	sb.WriteString(r.Level.String())
	sb.WriteByte(' ')
	sb.WriteString(r.Message)
	sb.WriteString(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.group, a)
		return true
	})
	h.buffer.Append(sb.String())

	return h.next.Handle(ctx, r)
}

func (h *bufferingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var sb strings.Builder
	sb.WriteString(h.bound)
	for _, a := range attrs {
		writeAttr(&sb, h.group, a)
	}
	return &bufferingHandler{next: h.next.WithAttrs(attrs), buffer: h.buffer, bound: sb.String(), group: h.group}
}

func (h *bufferingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &bufferingHandler{next: h.next.WithGroup(name), buffer: h.buffer, bound: h.bound, group: h.group + name + "."}
}

func writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(sb, groupPrefix, ga)
		}
		return
	}
	sb.WriteByte(' ')
	sb.WriteString(prefix)
	sb.WriteString(a.Key)
	sb.WriteByte('=')
	sb.WriteString(a.Value.String())
}
