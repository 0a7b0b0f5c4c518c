package mdns

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bonjour/config"
	"github.com/dep2p/go-bonjour/internal/engine/nat"
	"github.com/dep2p/go-bonjour/internal/util/addrutil"
	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
	natif "github.com/dep2p/go-bonjour/pkg/interfaces/nat"
	"github.com/dep2p/go-bonjour/pkg/types"
)

// defaultResolvConf 单播 DNS 配置文件
const defaultResolvConf = "/etc/resolv.conf"

// ============================================================================
//                              Engine 结构
// ============================================================================

// Engine mDNS 响应器引擎
//
// 除接收协程外，所有方法都只能在驱动线程上调用。
type Engine struct {
	cfg    config.MDNSConfig
	natCfg config.NATConfig

	// 可替换的平台依赖
	listInterfaces func(allow []string) ([]*netIface, error)
	openSockets    func(cfg config.MDNSConfig, ifaces []*netIface) ([]*socket, error)
	newMapper      func(cfg config.NATConfig) (natif.Mapper, error)
	resolvConf     string
	now            func() time.Time

	initialized bool
	advertise   bool
	logFn       engineif.LogFunc

	cache     recordCache
	ifaces    map[engineif.InterfaceID]*netIface
	sockets   []*socket
	host      *hostRecords
	traversal *nat.Traversal
	dnsConfig *dns.ClientConfig
	nextSweep time.Time

	// send 发送出站报文，测试中可替换
	send func(out outbound)
	buf  []byte

	inbound  chan datagram
	done     chan struct{}
	recvOnce sync.Once
	wg       sync.WaitGroup
}

// 确保实现接口
var (
	_ engineif.Engine        = (*Engine)(nil)
	_ engineif.PollEngine    = (*Engine)(nil)
	_ engineif.PlatformSetup = (*Engine)(nil)
)

// New 创建引擎
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.MDNS.Validate(); err != nil {
		return nil, fmt.Errorf("mdns: %w", err)
	}
	if err := cfg.NAT.Validate(); err != nil {
		return nil, fmt.Errorf("mdns: %w", err)
	}

	e := &Engine{
		cfg:            cfg.MDNS,
		natCfg:         cfg.NAT,
		listInterfaces: listInterfaces,
		openSockets:    openSockets,
		newMapper:      nat.NewMapper,
		resolvConf:     defaultResolvConf,
		now:            time.Now,
	}
	e.send = e.transmit
	return e, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Init 打开套接字、建立主机记录并启动 NAT 子系统
func (e *Engine) Init(cache *engineif.CacheStore, opts engineif.InitOptions) (err error) {
	if e.initialized {
		return ErrAlreadyInitialized
	}
	if cache == nil {
		return ErrNilCache
	}

	e.logFn = opts.Log
	e.advertise = opts.AdvertiseLocalAddresses
	defer func() {
		if opts.InitCallback != nil {
			opts.InitCallback(err)
		}
	}()

	host, err := newHostRecords(e.cfg.Hostname, e.cfg.Domain, e.cfg.HostTTL,
		e.cfg.AnnounceCount, e.cfg.AnnounceInterval.Duration())
	if err != nil {
		return err
	}

	ifaces, err := e.listInterfaces(e.cfg.Interfaces)
	if err != nil {
		return fmt.Errorf("mdns: list interfaces: %w", err)
	}
	if len(ifaces) == 0 {
		return ErrNoInterfaces
	}

	sockets, err := e.openSockets(e.cfg, ifaces)
	if err != nil {
		return err
	}

	mapper, err := e.newMapper(e.natCfg)
	if err != nil {
		_ = closeSockets(sockets)
		return err
	}

	now := e.now()
	e.cache = recordCache{store: cache}
	e.ifaces = make(map[engineif.InterfaceID]*netIface, len(ifaces))
	for _, n := range ifaces {
		e.ifaces[n.id] = n
	}
	e.sockets = sockets
	e.host = host
	e.traversal = nat.NewTraversal(mapper, e.natCfg)
	e.nextSweep = now.Add(e.cfg.CacheSweepInterval.Duration())
	e.buf = make([]byte, maxPacketSize)
	e.inbound = make(chan datagram, 64)
	e.done = make(chan struct{})
	e.recvOnce = sync.Once{}

	if e.advertise {
		host.restart(now)
	} else {
		host.state = hostEstablished
	}
	e.initialized = true

	e.logf(types.SeverityMsg, "mDNSResponder (Engine: %d) starting, host %s on %d interfaces",
		DaemonVersion, host.fqdn(), len(ifaces))
	log.Info("mDNS 引擎已启动",
		"host", host.fqdn(),
		"interfaces", len(ifaces),
		"sockets", len(sockets),
		"advertise", e.advertise)
	return nil
}

// Close 发送告别报文，停止 NAT 子系统并关闭套接字
func (e *Engine) Close() {
	if !e.initialized {
		return
	}
	e.goodbye()

	var errs error
	errs = multierr.Append(errs, e.traversal.Close())
	close(e.done)
	errs = multierr.Append(errs, closeSockets(e.sockets))
	e.wg.Wait()

	e.initialized = false
	e.sockets = nil
	e.traversal = nil
	e.cache = recordCache{}
	e.ifaces = nil

	if errs != nil {
		log.Warn("关闭 mDNS 引擎时出错", "err", errs)
	}
	e.logf(types.SeverityMsg, "mDNSResponder (Engine: %d) stopping", DaemonVersion)
}

// Initialized 引擎是否已初始化
func (e *Engine) Initialized() bool {
	return e.initialized
}

// Version 返回引擎版本号
func (e *Engine) Version() uint32 {
	return DaemonVersion
}

// HostName 当前使用的完整主机名
func (e *Engine) HostName() string {
	if e.host == nil {
		return ""
	}
	return e.host.fqdn()
}

// ============================================================================
//                              平台初始化
// ============================================================================

// SetupInterfaceList 重新枚举网卡并在新网卡上加入组播组
func (e *Engine) SetupInterfaceList() error {
	if !e.initialized {
		return types.ErrNotInitialized
	}
	ifaces, err := e.listInterfaces(e.cfg.Interfaces)
	if err != nil {
		return fmt.Errorf("mdns: list interfaces: %w", err)
	}

	next := make(map[engineif.InterfaceID]*netIface, len(ifaces))
	for _, n := range ifaces {
		if _, known := e.ifaces[n.id]; !known {
			for _, s := range e.sockets {
				if err := s.join(n); err != nil && !errors.Is(err, errNoFamilyAddress) {
					log.Debug("加入组播组失败", "iface", n.ifi.Name, "err", err)
				}
			}
			e.logf(types.SeverityInfo, "interface %s (%d) added", n.ifi.Name, n.index())
		}
		next[n.id] = n
	}
	e.ifaces = next
	return nil
}

// SetupDNSConfig 读取单播 DNS 配置
//
// 配置文件不存在时视为没有单播 DNS。
func (e *Engine) SetupDNSConfig() error {
	if !e.initialized {
		return types.ErrNotInitialized
	}
	cc, err := dns.ClientConfigFromFile(e.resolvConf)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug("没有单播 DNS 配置", "path", e.resolvConf)
			return nil
		}
		return fmt.Errorf("mdns: dns config: %w", err)
	}
	e.dnsConfig = cc
	log.Debug("单播 DNS 配置", "servers", cc.Servers, "search", cc.Search)
	return nil
}

// DNSServers 单播 DNS 服务器
func (e *Engine) DNSServers() []string {
	if e.dnsConfig == nil {
		return nil
	}
	return e.dnsConfig.Servers
}

// ============================================================================
//                              网卡
// ============================================================================

// ResolveInterfaceID 将网卡序号解析为引擎网卡标识
func (e *Engine) ResolveInterfaceID(index uint32) (engineif.InterfaceID, bool) {
	if index == 0 {
		return engineif.InterfaceAny, true
	}
	id := engineif.InterfaceID(index)
	if _, ok := e.ifaces[id]; ok {
		return id, true
	}
	return 0, false
}

// InterfaceIndex 将引擎网卡标识转换为网卡序号
func (e *Engine) InterfaceIndex(id engineif.InterfaceID) uint32 {
	if id == engineif.InterfaceAny {
		return 0
	}
	return uint32(id)
}

// SourceAddrForDest 返回本机访问 dest 时使用的源地址
func (e *Engine) SourceAddrForDest(dest netip.Addr) (netip.Addr, error) {
	return addrutil.SourceAddrForDest(dest)
}

// interfaceFor 确定报文所属网卡
//
// 控制消息未带网卡序号时，按本机到源地址的路由推断。
func (e *Engine) interfaceFor(pkt datagram) *netIface {
	if n, ok := e.ifaces[engineif.InterfaceID(pkt.ifIndex)]; ok {
		return n
	}
	src, err := e.SourceAddrForDest(pkt.src.Addr())
	if err != nil {
		return nil
	}
	for _, n := range e.ifaces {
		if n.owns(src) {
			return n
		}
	}
	return nil
}

// isSelf 源地址是否为本机地址
func (e *Engine) isSelf(addr netip.Addr) bool {
	for _, n := range e.ifaces {
		if n.owns(addr) {
			return true
		}
	}
	return false
}

// ============================================================================
//                              NAT
// ============================================================================

// StartNATOperation 注册 NAT 穿透请求
func (e *Engine) StartNATOperation(info *engineif.NATTraversalInfo) error {
	if !e.initialized {
		return types.ErrNotInitialized
	}
	return e.traversal.Start(info)
}

// StopNATOperation 注销 NAT 穿透请求
func (e *Engine) StopNATOperation(info *engineif.NATTraversalInfo) error {
	if !e.initialized {
		return types.ErrNotInitialized
	}
	return e.traversal.Stop(info)
}

// ============================================================================
//                              日志
// ============================================================================

// logf 通过集成层的日志出口输出引擎日志
func (e *Engine) logf(sev types.Severity, format string, args ...any) {
	if e.logFn == nil {
		return
	}
	e.logFn(sev, fmt.Sprintf(format, args...))
}

// ============================================================================
//                              套接字
// ============================================================================

// openSockets 按配置打开 IPv4 / IPv6 套接字
func openSockets(cfg config.MDNSConfig, ifaces []*netIface) ([]*socket, error) {
	var (
		sockets []*socket
		errs    error
	)
	if cfg.EnableIPv4 {
		s, err := openSocket("udp4", cfg.Port, ifaces)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			sockets = append(sockets, s)
		}
	}
	if cfg.EnableIPv6 {
		s, err := openSocket("udp6", cfg.Port, ifaces)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			sockets = append(sockets, s)
		}
	}
	if len(sockets) == 0 {
		return nil, fmt.Errorf("mdns: open sockets: %w", errs)
	}
	if errs != nil {
		log.Warn("部分 mDNS 套接字未能打开", "err", errs)
	}
	return sockets, nil
}
