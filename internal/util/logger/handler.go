package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	// globalOutput 全局日志输出目标，默认为 stderr
	globalOutput   io.Writer = os.Stderr
	globalOutputMu sync.RWMutex
)

// dynamicWriter 每次写入时查找 globalOutput，
// 因此 Logger 创建之后调用 SetOutput 依然生效
type dynamicWriter struct{}

func (dynamicWriter) Write(p []byte) (int, error) {
	globalOutputMu.RLock()
	output := globalOutput
	globalOutputMu.RUnlock()
	return output.Write(p)
}

// subsystemHandler 支持按子系统动态调整级别的 slog.Handler
type subsystemHandler struct {
	subsystem string
	level     *atomic.Int64
	inner     slog.Handler
}

// newHandler 创建子系统 Handler
func newHandler(subsystem string, level slog.Level, cfg *Config) *subsystemHandler {
	opts := &slog.HandlerOptions{
		// 级别过滤由 subsystemHandler 负责
		Level:     slog.Level(-8),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelToString(lvl))
				}
			}
			return a
		},
	}

	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(dynamicWriter{}, opts)
	} else {
		inner = slog.NewTextHandler(dynamicWriter{}, opts)
	}

	lv := new(atomic.Int64)
	lv.Store(int64(level))

	return &subsystemHandler{
		subsystem: subsystem,
		level:     lv,
		inner:     inner.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)}),
	}
}

// Enabled 检查是否启用指定级别
func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	return int64(level) >= h.level.Load()
}

// Handle 处理日志记录
func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

// WithAttrs 添加属性（共享级别）
func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{subsystem: h.subsystem, level: h.level, inner: h.inner.WithAttrs(attrs)}
}

// WithGroup 添加组（共享级别）
func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{subsystem: h.subsystem, level: h.level, inner: h.inner.WithGroup(name)}
}

// SetLevel 动态设置日志级别
func (h *subsystemHandler) SetLevel(level slog.Level) {
	h.level.Store(int64(level))
}

// levelToString 将日志级别转换为小写字符串
func levelToString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

// discardHandler 丢弃所有日志的 Handler（用于测试）
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// DiscardHandler 返回一个丢弃所有日志的 Handler
func DiscardHandler() slog.Handler {
	return discardHandler{}
}
