package responder

import (
	"fmt"
	"time"

	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
)

// ============================================================================
//                              事件循环驱动
// ============================================================================

// EventLoopDriver 把一次 Process 调用转换为引擎的一轮工作
//
// 平台差异只体现在驱动上：
//   - select 驱动：由引擎填充就绪集合与超时，等待套接字就绪后分发
//   - poll 驱动：先执行到期任务，再在预算内轮询引擎
type EventLoopDriver interface {
	// Name 驱动名称
	Name() string

	// Step 执行一轮，最多阻塞 budget，返回本轮就绪的套接字数（不可知时为 0）
	Step(budget time.Duration) int
}

// DriverKind 驱动类型
type DriverKind string

const (
	// DriverAuto 按平台与引擎能力自动选择
	DriverAuto DriverKind = "auto"
	// DriverSelect 基于就绪集合的 select 驱动（仅 unix）
	DriverSelect DriverKind = "select"
	// DriverPoll 执行 + 轮询驱动
	DriverPoll DriverKind = "poll"
)

// NewDriver 为引擎创建驱动
//
// DriverAuto 优先使用平台默认驱动，引擎不支持时回退到另一种。
func NewDriver(kind DriverKind, e engineif.Engine) (EventLoopDriver, error) {
	switch kind {
	case DriverAuto, "":
		if d, err := newPlatformDriver(e); err == nil {
			return d, nil
		}
		if d, err := newSelectDriver(e); err == nil {
			return d, nil
		}
		return newPollDriver(e)
	case DriverSelect:
		return newSelectDriver(e)
	case DriverPoll:
		return newPollDriver(e)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, kind)
	}
}

// ============================================================================
//                              poll 驱动
// ============================================================================

// pollDriver 执行到期任务后在预算内轮询
type pollDriver struct {
	engine engineif.PollEngine
}

func newPollDriver(e engineif.Engine) (EventLoopDriver, error) {
	pe, ok := e.(engineif.PollEngine)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverUnsupported, DriverPoll)
	}
	return &pollDriver{engine: pe}, nil
}

func (d *pollDriver) Name() string { return string(DriverPoll) }

func (d *pollDriver) Step(budget time.Duration) int {
	d.engine.Execute()
	d.engine.Poll(budget)
	return 0
}
