// Package host 驱动响应器的事件循环
//
// Runner 在单个协程上反复调用 Responder.Process。其它协程需要访问
// 响应器（例如创建 NAT 映射）时，通过 Do 把函数投递到该协程执行，
// 从而保证响应器始终只在一个线程上被使用。
//
// NAT 回调运行在事件循环协程上，回调内调用 Do 时 fn 直接同步执行。
package host

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-bonjour/config"
	"github.com/dep2p/go-bonjour/internal/responder"
	"github.com/dep2p/go-bonjour/internal/util/logger"
)

// 包级别日志实例
var log = logger.Logger("host")

// Runner 错误
var (
	// ErrAlreadyStarted 已启动
	ErrAlreadyStarted = errors.New("host: runner already started")

	// ErrNotRunning 未运行
	ErrNotRunning = errors.New("host: runner not running")
)

// Runner 事件循环驱动器
type Runner struct {
	r        *responder.Responder
	interval time.Duration
	budget   time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	tasks   chan func()

	// loopID 事件循环协程的 id，未运行时为 0
	loopID atomic.Uint64
}

// NewRunner 创建驱动器
func NewRunner(r *responder.Responder, cfg config.ResponderConfig) *Runner {
	return &Runner{
		r:        r,
		interval: cfg.ProcessInterval.Duration(),
		budget:   cfg.ProcessBudget.Duration(),
		tasks:    make(chan func()),
	}
}

// Start 启动事件循环协程
func (h *Runner) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	h.running = true

	go h.loop(ctx, h.done)
	log.Debug("事件循环已启动", "interval", h.interval, "budget", h.budget)
	return nil
}

// Stop 停止事件循环并等待协程退出
func (h *Runner) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	cancel, done := h.cancel, h.done
	h.mu.Unlock()

	cancel()
	<-done
	log.Debug("事件循环已停止")
}

// Running 是否正在运行
func (h *Runner) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Do 在事件循环协程上执行 fn 并等待其返回
//
// 已在事件循环协程上（例如在 NAT 回调中）调用时直接执行 fn。
func (h *Runner) Do(ctx context.Context, fn func(r *responder.Responder)) error {
	if h.onLoop() {
		fn(h.r)
		return nil
	}

	h.mu.Lock()
	running, done := h.running, h.done
	h.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn(h.r)
	}

	select {
	case h.tasks <- task:
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// onLoop 当前协程是否为事件循环协程
func (h *Runner) onLoop() bool {
	id := h.loopID.Load()
	return id != 0 && id == goroutineID()
}

func (h *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	h.loopID.Store(goroutineID())
	defer h.loopID.Store(0)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-h.tasks:
			task()
		case <-timer.C:
			h.r.Process(h.budget)
			timer.Reset(h.interval)
		}
	}
}

// goroutineID 从栈头 "goroutine N [...]" 解析当前协程 id
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
