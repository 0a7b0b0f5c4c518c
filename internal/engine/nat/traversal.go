package nat

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-bonjour/config"
	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
	natif "github.com/dep2p/go-bonjour/pkg/interfaces/nat"
	"github.com/dep2p/go-bonjour/pkg/types"
)

// busyPollInterval 有请求在途时 NextEvent 返回的最大等待
const busyPollInterval = 50 * time.Millisecond

// minRenewInterval 续约间隔下限
const minRenewInterval = time.Second

// ============================================================================
//                              内部状态
// ============================================================================

// operation 一个已注册的穿透请求
type operation struct {
	info *engineif.NATTraversalInfo

	// gen 每次派发请求递增，旧结果按 gen 丢弃
	gen      uint64
	inflight bool

	// nextAt 下一次派发时间（刷新 / 续约 / 重试）
	nextAt time.Time

	// expiresAt 已授予映射的过期时间，零值表示没有有效映射
	expiresAt time.Time
	granted   natif.Mapping

	// reported 是否已经回调过至少一次
	reported bool
}

// request 派发给工作协程的请求快照
type request struct {
	op        engineif.NATOp
	internal  uint16
	requested uint16
	lease     time.Duration
}

// result 工作协程返回的结果
type result struct {
	info    *engineif.NATTraversalInfo
	gen     uint64
	addr    netip.Addr
	mapping natif.Mapping
	err     error
}

// ============================================================================
//                              Traversal 结构
// ============================================================================

// Traversal NAT 穿透调度器
//
// Start / Stop / Execute / NextEvent / Close 只能在事件循环线程上调用；
// 工作协程只通过 results 通道与其交互。
type Traversal struct {
	mapper natif.Mapper
	cfg    config.NATConfig

	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ops     map[*engineif.NATTraversalInfo]*operation
	pending []result
	results chan result
	ready   chan struct{}
	closed  bool
}

// NewTraversal 创建调度器
//
// mapper 为 nil 时所有请求都以 ErrNoRouter 失败。
func NewTraversal(mapper natif.Mapper, cfg config.NATConfig) *Traversal {
	ctx, cancel := context.WithCancel(context.Background())
	return &Traversal{
		mapper:  mapper,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestRate), max(cfg.RequestBurst, 1)),
		ctx:     ctx,
		cancel:  cancel,
		ops:     make(map[*engineif.NATTraversalInfo]*operation),
		results: make(chan result, 64),
		ready:   make(chan struct{}, 1),
	}
}

// Ready 有结果等待 Execute 处理时可读
func (t *Traversal) Ready() <-chan struct{} {
	return t.ready
}

// Len 已注册的请求数
func (t *Traversal) Len() int {
	return len(t.ops)
}

// ============================================================================
//                              注册 / 注销
// ============================================================================

// Start 注册请求并立即派发第一次网关调用
func (t *Traversal) Start(info *engineif.NATTraversalInfo) error {
	if t.closed {
		return types.ErrBadState
	}
	if info == nil {
		return types.ErrBadParam
	}
	if _, ok := t.ops[info]; ok {
		return types.ErrAlreadyRegistered
	}

	op := &operation{info: info}
	t.ops[info] = op
	t.dispatch(op)

	log.Debug("NAT 请求已注册",
		"protocol", info.Protocol,
		"internal", info.IntPort,
		"requested", info.RequestedPort,
		"lease", info.NATLease)
	return nil
}

// Stop 注销请求
//
// 已授予的映射在后台删除；在途结果到达后被丢弃。
func (t *Traversal) Stop(info *engineif.NATTraversalInfo) error {
	op, ok := t.ops[info]
	if !ok {
		return types.ErrBadReference
	}
	delete(t.ops, info)

	if op.granted.ExternalPort != 0 && t.mapper != nil && !t.closed {
		granted := op.granted
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.deleteMapping(context.Background(), granted)
		}()
	}

	log.Debug("NAT 请求已注销", "protocol", info.Protocol, "internal", info.IntPort)
	return nil
}

// ============================================================================
//                              调度
// ============================================================================

// Execute 应用已到达的结果、报告过期映射并派发到期请求
//
// 回调在这里同步调用。回调中可以安全地调用 Stop。
func (t *Traversal) Execute(now time.Time) {
	if t.closed {
		return
	}

	var notify []*operation

	for _, res := range t.drain() {
		op, ok := t.ops[res.info]
		if !ok || op.gen != res.gen {
			continue
		}
		op.inflight = false
		if t.apply(op, res, now) {
			notify = append(notify, op)
		}
	}

	for _, op := range t.ops {
		if !op.expiresAt.IsZero() && !now.Before(op.expiresAt) {
			t.expire(op)
			notify = append(notify, op)
		}
	}

	for _, op := range notify {
		// 回调可能已注销该请求
		if t.ops[op.info] != op {
			continue
		}
		op.reported = true
		if op.info.ClientCallback != nil {
			op.info.ClientCallback(op.info)
		}
	}

	for _, op := range t.ops {
		if !op.inflight && !now.Before(op.nextAt) {
			t.dispatch(op)
		}
	}
}

// NextEvent 返回下一次需要调用 Execute 的时间，零值表示没有计划事件
func (t *Traversal) NextEvent(now time.Time) time.Time {
	var next time.Time
	earlier := func(at time.Time) {
		if !at.IsZero() && (next.IsZero() || at.Before(next)) {
			next = at
		}
	}
	for _, op := range t.ops {
		if op.inflight {
			earlier(now.Add(busyPollInterval))
		} else {
			earlier(op.nextAt)
		}
		earlier(op.expiresAt)
	}
	if len(t.pending) > 0 || len(t.results) > 0 {
		earlier(now)
	}
	return next
}

// Close 停止调度器，删除已授予的映射并关闭映射器
//
// 所有请求随之失效，不再回调。
func (t *Traversal) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()

	var errs error
	if t.mapper != nil {
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, op := range t.ops {
			if op.granted.ExternalPort == 0 {
				continue
			}
			granted := op.granted
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := t.deleteMapping(context.Background(), granted); err != nil {
					mu.Lock()
					errs = multierr.Append(errs, err)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
	}
	t.wg.Wait()

	t.ops = make(map[*engineif.NATTraversalInfo]*operation)
	t.pending = nil

	if t.mapper != nil {
		errs = multierr.Append(errs, t.mapper.Close())
	}
	return errs
}

// ============================================================================
//                              内部实现
// ============================================================================

// drain 取出所有已到达的结果
func (t *Traversal) drain() []result {
	out := t.pending
	t.pending = nil
	for {
		select {
		case res := <-t.results:
			out = append(out, res)
		default:
			return out
		}
	}
}

// dispatch 派发一次网关调用
func (t *Traversal) dispatch(op *operation) {
	op.gen++
	op.inflight = true
	info := op.info

	req := request{
		op:        info.Protocol,
		internal:  info.IntPort.Host(),
		requested: info.RequestedPort.Host(),
		lease:     time.Duration(info.NATLease) * time.Second,
	}
	// 续约时沿用已分配的外部端口
	if op.granted.ExternalPort != 0 {
		req.requested = op.granted.ExternalPort
	}
	if req.lease == 0 {
		req.lease = t.cfg.DefaultLease.Duration()
	}

	if t.mapper == nil {
		t.pending = append(t.pending, result{info: info, gen: op.gen, err: types.ErrNoRouter})
		t.signal()
		return
	}

	gen := op.gen
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		res := t.perform(req)
		res.info = info
		res.gen = gen
		select {
		case t.results <- res:
			t.signal()
		case <-t.ctx.Done():
		}
	}()
}

// perform 在工作协程中执行网关调用
func (t *Traversal) perform(req request) result {
	if err := t.limiter.Wait(t.ctx); err != nil {
		return result{err: err}
	}

	ctx, cancel := context.WithTimeout(t.ctx, t.cfg.RequestTimeout.Duration())
	defer cancel()

	addr, err := t.mapper.ExternalAddress(ctx)
	if err != nil {
		return result{err: err}
	}
	if req.op == engineif.NATOpAddrRequest {
		return result{addr: addr}
	}

	mapping, err := t.mapper.AddMapping(ctx, mapperProtocol(req.op), req.internal, req.requested, req.lease)
	if err != nil {
		return result{addr: addr, err: err}
	}
	return result{addr: addr, mapping: mapping}
}

// deleteMapping 删除已授予的映射
func (t *Traversal) deleteMapping(parent context.Context, m natif.Mapping) error {
	ctx, cancel := context.WithTimeout(parent, t.cfg.RequestTimeout.Duration())
	defer cancel()
	err := t.mapper.DeleteMapping(ctx, m.Protocol, m.InternalPort, m.ExternalPort)
	if err != nil {
		log.Debug("删除 NAT 映射失败",
			"protocol", m.Protocol,
			"internal", m.InternalPort,
			"external", m.ExternalPort,
			"err", err)
	}
	return err
}

func (t *Traversal) signal() {
	select {
	case t.ready <- struct{}{}:
	default:
	}
}

// apply 把结果写回请求，返回是否需要回调
func (t *Traversal) apply(op *operation, res result, now time.Time) bool {
	info := op.info

	if res.err != nil {
		op.nextAt = now.Add(t.cfg.RetryInterval.Duration())
		// 仍持有有效映射时静默重试，直到过期
		if !op.expiresAt.IsZero() && now.Before(op.expiresAt) {
			log.Debug("NAT 续约失败，稍后重试", "protocol", info.Protocol, "err", res.err)
			return false
		}
		op.expiresAt = time.Time{}
		op.granted = natif.Mapping{}
		code := resultCode(res.err)
		if op.reported && info.Result == code {
			return false
		}
		info.Result = code
		info.ExternalPort = 0
		info.Lifetime = 0
		log.Debug("NAT 请求失败", "protocol", info.Protocol, "code", code.Name(), "err", res.err)
		return true
	}

	if info.Protocol == engineif.NATOpAddrRequest {
		op.nextAt = now.Add(t.cfg.AddressRefresh.Duration())
		changed := !op.reported || info.Result != types.CodeNoError || info.ExternalAddress != res.addr
		info.Result = types.CodeNoError
		info.ExternalAddress = res.addr
		info.ExternalPort = 0
		info.Lifetime = 0
		return changed
	}

	lifetime := res.mapping.Lifetime
	op.granted = res.mapping
	op.expiresAt = now.Add(lifetime)
	op.nextAt = now.Add(max(lifetime/2, minRenewInterval))

	info.Result = types.CodeNoError
	info.ExternalAddress = res.addr
	info.ExternalPort = types.NewIPPort(res.mapping.ExternalPort)
	info.Lifetime = uint32(lifetime / time.Second)
	return true
}

// expire 报告映射过期
func (t *Traversal) expire(op *operation) {
	info := op.info
	log.Info("NAT 映射已过期",
		"protocol", info.Protocol,
		"internal", op.granted.InternalPort,
		"external", op.granted.ExternalPort)

	op.expiresAt = time.Time{}
	op.granted = natif.Mapping{}
	info.Result = types.CodeNATTraversal
	info.ExternalPort = 0
	info.Lifetime = 0
}

// resultCode 把网关错误映射为状态码
func resultCode(err error) types.ErrorCode {
	var code types.ErrorCode
	switch {
	case errors.As(err, &code):
		return code
	case errors.Is(err, natif.ErrNoGateway):
		return types.CodeNoRouter
	case errors.Is(err, natif.ErrUnsupported):
		return types.CodeNATPortMappingUnsupported
	case errors.Is(err, natif.ErrMapperClosed):
		return types.CodeBadState
	case errors.Is(err, context.DeadlineExceeded):
		return types.CodeTimeout
	default:
		return types.CodeNATTraversal
	}
}

// mapperProtocol 返回映射器使用的协议名
func mapperProtocol(op engineif.NATOp) string {
	if op == engineif.NATOpMapUDP {
		return natif.ProtocolUDP
	}
	return natif.ProtocolTCP
}
