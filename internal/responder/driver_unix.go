//go:build unix

package responder

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
)

// selectDriver 基于就绪集合的驱动
//
// 等待使用 poll(2)，宿主进程打开超过 FD_SETSIZE 个描述符时仍可工作。
type selectDriver struct {
	engine engineif.SelectEngine
	fds    []unix.PollFd
}

func newSelectDriver(e engineif.Engine) (EventLoopDriver, error) {
	se, ok := e.(engineif.SelectEngine)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverUnsupported, DriverSelect)
	}
	return &selectDriver{engine: se}, nil
}

// newPlatformDriver unix 平台默认使用 select 驱动
func newPlatformDriver(e engineif.Engine) (EventLoopDriver, error) {
	return newSelectDriver(e)
}

func (d *selectDriver) Name() string { return string(DriverSelect) }

// Step 引擎填充就绪集合并可缩短超时；等待后仅在有就绪套接字时分发
func (d *selectDriver) Step(budget time.Duration) int {
	fds := d.fds[:0]
	timeout := budget

	d.engine.BuildReadySet(&fds, &timeout)
	d.fds = fds
	if timeout < 0 {
		timeout = 0
	}

	// 向下取整到毫秒，不超出预算
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if !errors.Is(err, unix.EINTR) {
			log.Debug("poll 失败", "err", err)
		}
		return 0
	}
	if n > 0 {
		d.engine.DispatchReadySet(fds)
	}
	return n
}
