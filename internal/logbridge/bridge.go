// Package logbridge 把引擎日志重定向到宿主程序安装的回调
//
// 引擎日志带有引擎自己的级别（types.Severity 或 types.EventType），
// 桥接器把它们映射到封闭的标签集合 {W, I, V, D}，再同步转发给回调。
// 未安装回调时直接丢弃，不缓存也不重试。
package logbridge

import (
	"log/slog"
	"sync/atomic"

	"github.com/dep2p/go-bonjour/pkg/types"
)

// Sink 宿主日志回调
type Sink func(tag types.Tag, msg string)

// Bridge 单槽位日志回调注册表
//
// 零值可用，默认没有回调。
type Bridge struct {
	sink atomic.Pointer[Sink]
}

// New 创建桥接器
func New() *Bridge {
	return &Bridge{}
}

// SetSink 原子替换回调并返回旧回调
//
// nil 表示关闭转发。返回值可用于保存/恢复：
//
//	prev := b.SetSink(mySink)
//	defer b.SetSink(prev)
func (b *Bridge) SetSink(s Sink) Sink {
	var next *Sink
	if s != nil {
		next = &s
	}
	prev := b.sink.Swap(next)
	if prev == nil {
		return nil
	}
	return *prev
}

// Sink 返回当前回调
func (b *Bridge) Sink() Sink {
	if p := b.sink.Load(); p != nil {
		return *p
	}
	return nil
}

// Log 引擎日志入口（POSIX 级别）
func (b *Bridge) Log(sev types.Severity, msg string) {
	b.forward(TagForSeverity(sev), msg)
}

// ReportStatus 引擎日志入口（事件日志级别）
func (b *Bridge) ReportStatus(ev types.EventType, msg string) {
	b.forward(TagForEvent(ev), msg)
}

func (b *Bridge) forward(tag types.Tag, msg string) {
	if sink := b.Sink(); sink != nil {
		sink(tag, msg)
	}
}

// ============================================================================
//                              级别映射
// ============================================================================

// TagForSeverity POSIX 引擎级别到标签的映射
func TagForSeverity(sev types.Severity) types.Tag {
	switch sev {
	case types.SeverityMsg:
		return types.TagWarning
	case types.SeverityOperation:
		return types.TagInfo
	case types.SeveritySPS, types.SeverityInfo:
		return types.TagVerbose
	default:
		return types.TagDebug
	}
}

// TagForEvent 事件日志级别到标签的映射
func TagForEvent(ev types.EventType) types.Tag {
	switch ev {
	case types.EventError:
		return types.TagWarning
	case types.EventWarning:
		return types.TagInfo
	case types.EventInformation:
		return types.TagVerbose
	default:
		return types.TagDebug
	}
}

// SeverityForLevel slog 级别到引擎级别的映射
func SeverityForLevel(level slog.Level) types.Severity {
	switch {
	case level >= slog.LevelWarn:
		return types.SeverityMsg
	case level >= slog.LevelInfo:
		return types.SeverityOperation
	case level >= slog.LevelDebug:
		return types.SeverityInfo
	default:
		return types.SeverityDebug
	}
}
