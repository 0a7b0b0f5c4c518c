package responder

import (
	"github.com/dep2p/go-bonjour/internal/logbridge"
)

// Option 响应器选项
type Option func(*options)

type options struct {
	driver     EventLoopDriver
	driverKind DriverKind
	bridge     *logbridge.Bridge
	metrics    *Metrics
}

func defaultOptions() *options {
	return &options{driverKind: DriverAuto}
}

// WithDriver 使用指定的事件循环驱动（优先于 WithDriverKind）
func WithDriver(d EventLoopDriver) Option {
	return func(o *options) {
		o.driver = d
	}
}

// WithDriverKind 按类型选择事件循环驱动
func WithDriverKind(kind DriverKind) Option {
	return func(o *options) {
		o.driverKind = kind
	}
}

// WithLogBridge 共享外部日志桥接器
func WithLogBridge(b *logbridge.Bridge) Option {
	return func(o *options) {
		o.bridge = b
	}
}

// WithMetrics 使用指定的指标集合
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
