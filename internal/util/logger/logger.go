// Package logger 提供 go-bonjour 的统一日志系统
//
// 基于标准库 log/slog，支持：
//   - 按子系统配置日志级别
//   - 环境变量配置（BONJOUR_LOG_LEVEL, BONJOUR_LOG_FORMAT）
//   - 结构化日志
//
// 使用示例:
//
//	var log = logger.Logger("engine.mdns")
//
//	func foo() {
//	    log.Info("网卡已加入组播", "iface", name, "index", idx)
//	    log.Debug("收到查询", "name", q.Name)
//	}
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调整级别）
	handlers sync.Map // map[string]*subsystemHandler
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回相同实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	h := newHandler(subsystem, cfg.LevelForSubsystem(subsystem), cfg)

	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// SetGlobalLevel 设置所有已创建子系统的日志级别
func SetGlobalLevel(level slog.Level) {
	handlers.Range(func(_, value any) bool {
		value.(*subsystemHandler).SetLevel(level)
		return true
	})
}

// Discard 返回一个丢弃所有日志的 Logger
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 同样会切换到新的 writer。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}
