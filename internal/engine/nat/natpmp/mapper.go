package natpmp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/dep2p/go-bonjour/internal/util/addrutil"
	"github.com/dep2p/go-bonjour/internal/util/logger"
	natif "github.com/dep2p/go-bonjour/pkg/interfaces/nat"
)

// 包级别日志实例
var log = logger.Logger("engine.nat.natpmp")

// DefaultTimeout 默认请求超时
const DefaultTimeout = 3 * time.Second

// defaultLifetime 未指定租期时请求的租期（秒）
const defaultLifetime = 3600

// client NAT-PMP 客户端，*natpmp.Client 实现该接口
type client interface {
	GetExternalAddress() (*natpmp.GetExternalAddressResult, error)
	AddPortMapping(protocol string, internalPort, requestedExternalPort int, lifetime int) (*natpmp.AddPortMappingResult, error)
}

// ============================================================================
//                              Mapper 结构
// ============================================================================

// Mapper NAT-PMP 端口映射器实现
type Mapper struct {
	mu      sync.Mutex
	client  client
	gateway netip.Addr
	closed  bool

	timeout time.Duration

	discoverGateway func() (net.IP, error)
	newClient       func(gw net.IP, timeout time.Duration) client
}

// 确保实现接口
var _ natif.Mapper = (*Mapper)(nil)

// Option 映射器选项
type Option func(*Mapper)

// WithGateway 使用指定网关，跳过自动发现
func WithGateway(gw netip.Addr) Option {
	return func(m *Mapper) {
		m.gateway = gw
	}
}

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(m *Mapper) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewMapper 创建 NAT-PMP 映射器
//
// 网关在第一次请求时才发现。
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		timeout:         DefaultTimeout,
		discoverGateway: gateway.DiscoverGateway,
		newClient: func(gw net.IP, timeout time.Duration) client {
			return natpmp.NewClientWithTimeout(gw, timeout)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name 返回映射器名称
func (m *Mapper) Name() string {
	return "nat-pmp"
}

// Gateway 返回当前网关地址，尚未发现时为零值
func (m *Mapper) Gateway() netip.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gateway
}

// ExternalAddress 获取网关公网地址
func (m *Mapper) ExternalAddress(ctx context.Context) (netip.Addr, error) {
	c, err := m.ensureClient(ctx)
	if err != nil {
		return netip.Addr{}, err
	}

	resp, err := call(ctx, c.GetExternalAddress)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", natif.ErrUnsupported, err)
	}
	return netip.AddrFrom4(resp.ExternalIPAddress), nil
}

// AddMapping 添加端口映射
func (m *Mapper) AddMapping(ctx context.Context, protocol string, internalPort, requestedPort uint16, lease time.Duration) (natif.Mapping, error) {
	c, err := m.ensureClient(ctx)
	if err != nil {
		return natif.Mapping{}, err
	}

	lifetime := int(lease / time.Second)
	if lifetime <= 0 {
		lifetime = defaultLifetime
	}

	resp, err := call(ctx, func() (*natpmp.AddPortMappingResult, error) {
		return c.AddPortMapping(pmpProtocol(protocol), int(internalPort), int(requestedPort), lifetime)
	})
	if err != nil {
		log.Warn("NAT-PMP 端口映射失败",
			"protocol", protocol,
			"port", internalPort,
			"err", err)
		return natif.Mapping{}, fmt.Errorf("%w: %v", natif.ErrMappingFailed, err)
	}

	mapping := natif.Mapping{
		Protocol:     pmpProtocol(protocol),
		InternalPort: internalPort,
		ExternalPort: resp.MappedExternalPort,
		Lifetime:     time.Duration(resp.PortMappingLifetimeInSeconds) * time.Second,
	}

	log.Debug("NAT-PMP 端口映射成功",
		"protocol", mapping.Protocol,
		"internalPort", internalPort,
		"externalPort", mapping.ExternalPort,
		"lifetime", mapping.Lifetime)

	return mapping, nil
}

// DeleteMapping 删除端口映射（租期 0）
func (m *Mapper) DeleteMapping(ctx context.Context, protocol string, internalPort, externalPort uint16) error {
	m.mu.Lock()
	c := m.client
	m.mu.Unlock()

	if c == nil {
		return nil // 没有网关，无需删除
	}

	_, err := call(ctx, func() (*natpmp.AddPortMappingResult, error) {
		return c.AddPortMapping(pmpProtocol(protocol), int(internalPort), 0, 0)
	})
	if err != nil {
		log.Debug("删除 NAT-PMP 端口映射失败",
			"protocol", protocol,
			"externalPort", externalPort,
			"err", err)
		return fmt.Errorf("%w: %v", natif.ErrMappingFailed, err)
	}

	log.Debug("NAT-PMP 端口映射已删除",
		"protocol", protocol,
		"externalPort", externalPort)
	return nil
}

// Close 关闭映射器
func (m *Mapper) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.client = nil
	return nil
}

// ============================================================================
//                              网关发现
// ============================================================================

// ensureClient 返回客户端，必要时先发现网关
func (m *Mapper) ensureClient(ctx context.Context) (client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, natif.ErrMapperClosed
	}
	if m.client != nil {
		return m.client, nil
	}

	gw := m.gateway
	if !gw.IsValid() {
		ip, err := call(ctx, m.discoverGateway)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", natif.ErrNoGateway, err)
		}
		gw = addrutil.FromNetIP(ip)
		if !gw.Is4() {
			return nil, fmt.Errorf("%w: gateway %s is not IPv4", natif.ErrNoGateway, gw)
		}
		m.gateway = gw
		log.Info("发现 NAT-PMP 网关", "gateway", gw)
	}

	m.client = m.newClient(net.IP(gw.AsSlice()), m.timeout)
	return m.client, nil
}

// call 在 goroutine 中执行阻塞调用，遵守 ctx 取消
//
// 底层 go-nat-pmp 库的网络调用不支持 context，这里用 goroutine + select 包装。
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)

	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// pmpProtocol NAT-PMP 使用小写协议名
func pmpProtocol(p string) string {
	if p == natif.ProtocolTCP || p == "TCP" {
		return natif.ProtocolTCP
	}
	return natif.ProtocolUDP
}
