package bonjour

import (
	"errors"

	"github.com/dep2p/go-bonjour/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              错误定义
// ════════════════════════════════════════════════════════════════════════════

// ────────────────────────────────────────────────────────────────────────────
// 生命周期错误
// ────────────────────────────────────────────────────────────────────────────

var (
	// ErrAlreadyStarted App 已启动
	ErrAlreadyStarted = errors.New("app already started")

	// ErrNotStarted App 未启动
	ErrNotStarted = errors.New("app not started")

	// ErrAppClosed App 已停止，不能再次启动
	ErrAppClosed = errors.New("app closed")
)

// ────────────────────────────────────────────────────────────────────────────
// 选项错误
// ────────────────────────────────────────────────────────────────────────────

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("config is nil")

	// ErrInvalidPort 端口超出范围
	ErrInvalidPort = errors.New("invalid port")
)

// ────────────────────────────────────────────────────────────────────────────
// 响应器状态码（重新导出）
// ────────────────────────────────────────────────────────────────────────────

var (
	ErrBadParam          = types.ErrBadParam
	ErrBadReference      = types.ErrBadReference
	ErrBadState          = types.ErrBadState
	ErrServiceNotRunning = types.ErrServiceNotRunning
	ErrNoRouter          = types.ErrNoRouter
)
