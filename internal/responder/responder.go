// Package responder 实现嵌入式 mDNS 响应器的集成层
//
// Responder 是宿主程序显式构造的上下文对象，负责：
//   - 引擎生命周期（Init / Exit，幂等）
//   - 按宿主节奏驱动引擎事件处理（Process，受时间预算约束）
//   - 引擎日志重定向（SetLogProc）
//   - NAT 端口映射请求的创建与释放
//   - 属性查询与不支持操作的统一返回
//
// 并发模型：单线程协作式。所有引擎工作、NAT 结果回调、日志转发都在
// 调用方线程上、且只在 Process 调用内部同步执行。若宿主从多个 goroutine
// 调用 Process，需要自行串行化。
package responder

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-bonjour/internal/logbridge"
	"github.com/dep2p/go-bonjour/internal/util/logger"
	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
	"github.com/dep2p/go-bonjour/pkg/types"
)

var log = logger.Logger("responder")

// ============================================================================
//                              生命周期阶段
// ============================================================================

// Phase 响应器生命周期阶段
type Phase int32

const (
	// PhaseUninitialized 尚未初始化（或初始化失败）
	PhaseUninitialized Phase = iota
	// PhaseRunning 运行中
	PhaseRunning
	// PhaseClosed 已关闭（终态）
	PhaseClosed
)

// String 返回阶段名称
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseRunning:
		return "running"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// ============================================================================
//                              Responder
// ============================================================================

// Responder 响应器上下文
type Responder struct {
	engine  engineif.Engine
	driver  EventLoopDriver
	bridge  *logbridge.Bridge
	log     *slog.Logger
	metrics *Metrics

	// cache 资源记录缓存池，运行期间由引擎独占修改
	cache *engineif.CacheStore

	phase atomic.Int32

	// ops 活跃的 NAT 请求；Exit 时统一失效
	ops map[*NATPortMapping]struct{}
}

// New 创建响应器
//
// 返回的响应器处于 PhaseUninitialized，需要调用 Init。
func New(engine engineif.Engine, opts ...Option) (*Responder, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	r := &Responder{
		engine:  engine,
		bridge:  o.bridge,
		metrics: o.metrics,
		ops:     make(map[*NATPortMapping]struct{}),
	}
	if r.bridge == nil {
		r.bridge = logbridge.New()
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	r.log = r.bridge.Logger(log)

	driver := o.driver
	if driver == nil {
		var err error
		driver, err = NewDriver(o.driverKind, engine)
		if err != nil {
			return nil, err
		}
	}
	r.driver = driver

	return r, nil
}

// Phase 返回当前阶段
func (r *Responder) Phase() Phase {
	return Phase(r.phase.Load())
}

// Running 是否处于运行状态
func (r *Responder) Running() bool {
	return r.Phase() == PhaseRunning
}

// Driver 返回事件循环驱动
func (r *Responder) Driver() EventLoopDriver {
	return r.driver
}

// LogBridge 返回日志桥接器，引擎侧组件可借此输出日志
func (r *Responder) LogBridge() *logbridge.Bridge {
	return r.bridge
}

// SetLogProc 替换宿主日志回调并返回旧回调
//
// nil 表示关闭转发。
func (r *Responder) SetLogProc(sink logbridge.Sink) logbridge.Sink {
	return r.bridge.SetSink(sink)
}

// Init 初始化响应器
//
// 运行中重复调用直接返回 nil。初始化失败时记录状态码，
// 响应器保持 PhaseUninitialized，并原样返回引擎错误。
//
// Exit 之后响应器进入 PhaseClosed，不能再次初始化，Init 返回 ErrBadState；
// 需要重新启动时应创建新的 Responder。
func (r *Responder) Init() error {
	switch r.Phase() {
	case PhaseRunning:
		return nil
	case PhaseClosed:
		return types.ErrBadState
	}

	r.cache = new(engineif.CacheStore)

	err := r.engine.Init(r.cache, engineif.InitOptions{
		AdvertiseLocalAddresses: true,
		Log:                     r.bridge.Log,
	})
	if err == nil {
		if ps, ok := r.engine.(engineif.PlatformSetup); ok {
			err = setupPlatform(ps)
			if err != nil {
				r.engine.Close()
			}
		}
	}

	if err != nil {
		r.cache = nil
		r.metrics.initFailures.Inc()
		r.log.Warn("DNSResponderInit: failed", "errno", int32(types.CodeOf(err)), "err", err)
		return err
	}

	r.phase.Store(int32(PhaseRunning))
	r.log.Info("响应器已启动", "driver", r.driver.Name())
	return nil
}

// setupPlatform 依次建立网卡列表与 DNS 配置，前一步失败则不执行后一步
func setupPlatform(ps engineif.PlatformSetup) error {
	if err := ps.SetupInterfaceList(); err != nil {
		return err
	}
	return ps.SetupDNSConfig()
}

// Process 给引擎至多 budget 的处理时间
//
// 未运行时为空操作。budget 为 0 表示非阻塞轮询，负数按 0 处理。
func (r *Responder) Process(budget time.Duration) {
	if !r.Running() {
		return
	}
	if budget < 0 {
		budget = 0
	}

	start := time.Now()
	ready := r.driver.Step(budget)
	r.metrics.observeProcess(time.Since(start), ready)
}

// Exit 关闭响应器
//
// 关闭引擎并使所有未释放的 NAT 请求失效（之后不会再有回调）。
// 未运行时为空操作。
func (r *Responder) Exit() {
	if !r.Running() {
		return
	}

	for op := range r.ops {
		op.invalid = true
	}
	clear(r.ops)
	r.metrics.natActive.Set(0)

	r.engine.Close()
	r.cache = nil
	r.phase.Store(int32(PhaseClosed))
	r.log.Info("响应器已关闭")
}
