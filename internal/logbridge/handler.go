package logbridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// handler 把 slog 记录同时交给桥接器和下游 Handler
type handler struct {
	bridge *Bridge
	next   slog.Handler
	prefix string // 已格式化的 WithAttrs 属性
	group  string
}

// Handler 返回一个 slog.Handler
//
// 每条记录先按级别映射成标签转发给宿主回调（消息后附带 key=value 属性），
// 再交给 next（可为 nil）。宿主回调不受 next 的级别过滤影响。
func (b *Bridge) Handler(next slog.Handler) slog.Handler {
	return &handler{bridge: b, next: next}
}

// Logger 便捷方法：返回经由桥接器的 Logger
func (b *Bridge) Logger(next *slog.Logger) *slog.Logger {
	var h slog.Handler
	if next != nil {
		h = next.Handler()
	}
	return slog.New(b.Handler(h))
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.bridge.Sink() != nil {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if sink := h.bridge.Sink(); sink != nil {
		sink(TagForSeverity(SeverityForLevel(r.Level)), h.format(r))
	}
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var sb strings.Builder
	sb.WriteString(h.prefix)
	for _, a := range attrs {
		appendAttr(&sb, h.group, a)
	}
	nh := *h
	nh.prefix = sb.String()
	if h.next != nil {
		nh.next = h.next.WithAttrs(attrs)
	}
	return &nh
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.group = h.group + name + "."
	if h.next != nil {
		nh.next = h.next.WithGroup(name)
	}
	return &nh
}

// format 消息原文 + 属性
func (h *handler) format(r slog.Record) string {
	if h.prefix == "" && r.NumAttrs() == 0 {
		return r.Message
	}
	var sb strings.Builder
	sb.WriteString(r.Message)
	sb.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&sb, h.group, a)
		return true
	})
	return sb.String()
}

func appendAttr(sb *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		sub := group
		if a.Key != "" {
			sub = group + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(sb, sub, ga)
		}
		return
	}
	fmt.Fprintf(sb, " %s%s=%v", group, a.Key, a.Value.Any())
}
