package bonjour

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-bonjour/config"
	"github.com/dep2p/go-bonjour/internal/engine/mdns"
	"github.com/dep2p/go-bonjour/internal/host"
	"github.com/dep2p/go-bonjour/internal/logbridge"
	"github.com/dep2p/go-bonjour/internal/responder"
	"github.com/dep2p/go-bonjour/pkg/types"
)

// startTimeout 未设置截止时间时 Start / Stop 使用的超时
const startTimeout = 30 * time.Second

// ════════════════════════════════════════════════════════════════════════════
//                              App
// ════════════════════════════════════════════════════════════════════════════

// App 由 Fx 组装的完整响应器
//
// Start 初始化引擎并启动事件循环协程；Stop 停止事件循环并关闭引擎。
// 停止后的 App 不能再次启动。
type App struct {
	mu      sync.Mutex
	app     *fx.App
	config  *config.Config
	started bool
	closed  bool

	responder *responder.Responder
	runner    *host.Runner
	engine    *mdns.Engine
	bridge    *logbridge.Bridge
}

// NewApp 创建 App，不会打开任何套接字
func NewApp(opts ...Option) (*App, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := o.toConfig()
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg}
	app, err := buildFxApp(o, cfg, a)
	if err != nil {
		return nil, err
	}
	a.app = app
	return a, nil
}

// Start 初始化响应器并启动事件循环
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrAppClosed
	}
	if a.started {
		return ErrAlreadyStarted
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, startTimeout)
		defer cancel()
	}

	log.Info("正在启动响应器", "version", Version)
	if err := a.app.Start(ctx); err != nil {
		a.closed = true
		log.Error("响应器启动失败", "err", err)
		return fmt.Errorf("start: %w", err)
	}
	a.started = true
	log.Info("响应器已启动", "driver", a.responder.Driver().Name())
	return nil
}

// Stop 停止事件循环并关闭引擎
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return ErrNotStarted
	}
	a.started = false
	a.closed = true

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, startTimeout)
		defer cancel()
	}

	if err := a.app.Stop(ctx); err != nil {
		log.Warn("停止响应器时出错", "err", err)
		return fmt.Errorf("stop: %w", err)
	}
	log.Info("响应器已停止")
	return nil
}

// Config 返回生效的配置副本
func (a *App) Config() *Config {
	return a.config.Clone()
}

// SetLogSink 替换宿主日志回调，返回旧回调
func (a *App) SetLogSink(sink LogSink) LogSink {
	return a.bridge.SetSink(sink)
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件循环上的调用
// ════════════════════════════════════════════════════════════════════════════

// Do 在事件循环协程上执行 fn
//
// 响应器不是并发安全的，其它协程必须通过 Do 访问它。
// 在事件循环协程上（例如映射回调中）调用时 fn 直接执行。
func (a *App) Do(ctx context.Context, fn func(r *Responder)) error {
	if err := a.runner.Do(ctx, fn); err != nil {
		if errors.Is(err, host.ErrNotRunning) {
			return ErrNotStarted
		}
		return err
	}
	return nil
}

// HostName 当前通告的完整主机名
func (a *App) HostName(ctx context.Context) (string, error) {
	var name string
	err := a.Do(ctx, func(*Responder) {
		name = a.engine.HostName()
	})
	return name, err
}

// CreatePortMapping 在所有网卡上请求 NAT 端口映射
//
// 端口为主机字节序。protocol 为 ProtocolNone 时只请求公网地址。
// callback 在事件循环协程上执行，可以直接调用 ref.Dispose()，
// 也可以调用 App.Do 或 App.Dispose 而不会阻塞事件循环。
func (a *App) CreatePortMapping(
	ctx context.Context,
	protocol Protocol,
	internalPort, externalPort uint16,
	ttl uint32,
	callback NATPortMappingReply,
	userContext any,
) (*NATPortMapping, error) {
	var (
		mapping *NATPortMapping
		err     error
	)
	doErr := a.Do(ctx, func(r *Responder) {
		mapping, err = r.NATPortMappingCreate(types.FlagsNone, 0, protocol,
			types.NewIPPort(internalPort), types.NewIPPort(externalPort), ttl, callback, userContext)
	})
	if doErr != nil {
		return nil, doErr
	}
	return mapping, err
}

// Dispose 释放句柄
func (a *App) Dispose(ctx context.Context, ref ServiceRef) error {
	var err error
	doErr := a.Do(ctx, func(*Responder) {
		err = ref.Dispose()
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// ════════════════════════════════════════════════════════════════════════════
//                              独立使用
// ════════════════════════════════════════════════════════════════════════════

// NewResponder 创建使用内置 mDNS 引擎的响应器，不启动事件循环
//
// 宿主负责调用 Init、周期性调用 Process，并在结束时调用 Exit，
// 且所有调用都必须来自同一个协程。WithFxOptions 在这里不生效。
func NewResponder(opts ...Option) (*Responder, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := o.toConfig()
	if err != nil {
		return nil, err
	}

	engine, err := mdns.New(cfg)
	if err != nil {
		return nil, err
	}

	bridge := logbridge.New()
	if o.sink != nil {
		bridge.SetSink(o.sink)
	}
	return responder.New(engine,
		responder.WithDriverKind(responder.DriverKind(cfg.Responder.Driver)),
		responder.WithLogBridge(bridge),
		responder.WithMetrics(responder.NewMetrics(o.registerer)),
	)
}
