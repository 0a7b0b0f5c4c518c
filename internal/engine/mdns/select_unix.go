//go:build unix

package mdns

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
)

var _ engineif.SelectEngine = (*Engine)(nil)

// BuildReadySet 执行到期工作，把套接字加入就绪集合并收紧超时
func (e *Engine) BuildReadySet(fds *[]unix.PollFd, timeout *time.Duration) {
	if !e.initialized {
		return
	}
	now := e.now()
	e.execute(now)

	for _, s := range e.sockets {
		if s.fd < 0 {
			continue
		}
		*fds = append(*fds, unix.PollFd{Fd: int32(s.fd), Events: unix.POLLIN})
	}

	if wait := e.untilNextEvent(now); wait < *timeout {
		*timeout = wait
	}
}

// DispatchReadySet 每个就绪套接字读取并处理一个报文
func (e *Engine) DispatchReadySet(fds []unix.PollFd) {
	if !e.initialized {
		return
	}
	for _, s := range e.sockets {
		if s.fd < 0 || !readable(fds, s.fd) {
			continue
		}
		pkt, err := s.readReady(e.buf)
		if err != nil {
			if !errors.Is(err, errWouldBlock) {
				log.Debug("读取报文失败", "err", err)
			}
			continue
		}
		e.handlePacket(pkt, e.now())
	}
}

// readable fd 在就绪集合中是否可读
func readable(fds []unix.PollFd, fd int) bool {
	for _, p := range fds {
		if int(p.Fd) == fd {
			return p.Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0
		}
	}
	return false
}
