package responder

import (
	"time"

	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
)

// fakeEngine 记录所有调用的引擎替身，实现 PollEngine
type fakeEngine struct {
	initErr  error
	startErr error
	stopErr  error
	version  uint32

	// interfaces 网卡序号 -> 引擎标识
	interfaces map[uint32]engineif.InterfaceID

	initCalls  int
	closeCalls int
	cache      *engineif.CacheStore
	opts       engineif.InitOptions

	started []*engineif.NATTraversalInfo
	stopped []*engineif.NATTraversalInfo

	executeCalls int
	polls        []time.Duration

	// onPoll 在 Poll 内部执行，用于模拟结果交付
	onPoll func()
}

var _ engineif.PollEngine = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		version:    8783004,
		interfaces: map[uint32]engineif.InterfaceID{2: 20, 3: 30},
	}
}

func (e *fakeEngine) Init(cache *engineif.CacheStore, opts engineif.InitOptions) error {
	e.initCalls++
	e.cache = cache
	e.opts = opts
	return e.initErr
}

func (e *fakeEngine) Close() { e.closeCalls++ }

func (e *fakeEngine) ResolveInterfaceID(index uint32) (engineif.InterfaceID, bool) {
	if index == 0 {
		return engineif.InterfaceAny, true
	}
	id, ok := e.interfaces[index]
	return id, ok
}

func (e *fakeEngine) InterfaceIndex(id engineif.InterfaceID) uint32 {
	for idx, v := range e.interfaces {
		if v == id {
			return idx
		}
	}
	return 0
}

func (e *fakeEngine) StartNATOperation(info *engineif.NATTraversalInfo) error {
	if e.startErr != nil {
		return e.startErr
	}
	e.started = append(e.started, info)
	return nil
}

func (e *fakeEngine) StopNATOperation(info *engineif.NATTraversalInfo) error {
	e.stopped = append(e.stopped, info)
	return e.stopErr
}

func (e *fakeEngine) Version() uint32 { return e.version }

func (e *fakeEngine) Execute() { e.executeCalls++ }

func (e *fakeEngine) Poll(budget time.Duration) {
	e.polls = append(e.polls, budget)
	if e.onPoll != nil {
		e.onPoll()
	}
}

// setupEngine 需要平台初始化的引擎替身
type setupEngine struct {
	*fakeEngine

	ifaceErr error
	dnsErr   error
	steps    []string
}

func (e *setupEngine) SetupInterfaceList() error {
	e.steps = append(e.steps, "interfaces")
	return e.ifaceErr
}

func (e *setupEngine) SetupDNSConfig() error {
	e.steps = append(e.steps, "dns")
	return e.dnsErr
}

// bareEngine 只实现基础契约，不支持任何驱动
type bareEngine struct {
	engineif.Engine
}
