//go:build unix

package engine

import (
	"time"

	"golang.org/x/sys/unix"
)

// SelectEngine 基于就绪集合的引擎
//
// 就绪集合以 []unix.PollFd 表示，描述符数值不受 FD_SETSIZE 限制。
type SelectEngine interface {
	Engine

	// BuildReadySet 执行到期工作，把引擎套接字追加到 fds，
	// 并把 timeout 收紧到下一次计划事件（不会放宽）
	BuildReadySet(fds *[]unix.PollFd, timeout *time.Duration)

	// DispatchReadySet 处理 fds 中已就绪的套接字，读取不阻塞
	DispatchReadySet(fds []unix.PollFd)
}
