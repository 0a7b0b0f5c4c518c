package upnp

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/huin/goupnp/dcps/internetgateway2"

	"github.com/dep2p/go-bonjour/internal/util/addrutil"
	"github.com/dep2p/go-bonjour/internal/util/logger"
	natif "github.com/dep2p/go-bonjour/pkg/interfaces/nat"
)

// 包级别日志实例
var log = logger.Logger("engine.nat.upnp")

// defaultLease 未指定租期时请求的租期（秒）
const defaultLease = 3600

// ============================================================================
//                              IGD 客户端接口
// ============================================================================

// igdClient 抽象 IGD 客户端接口
//
// internetgateway1/2 生成的 WANIPConnection / WANPPPConnection 客户端都实现该接口。
type igdClient interface {
	GetExternalIPAddressCtx(ctx context.Context) (string, error)
	AddPortMappingCtx(
		ctx context.Context,
		newRemoteHost string,
		newExternalPort uint16,
		newProtocol string,
		newInternalPort uint16,
		newInternalClient string,
		newEnabled bool,
		newPortMappingDescription string,
		newLeaseDuration uint32,
	) error
	DeletePortMappingCtx(
		ctx context.Context,
		newRemoteHost string,
		newExternalPort uint16,
		newProtocol string,
	) error
}

var (
	_ igdClient = (*internetgateway2.WANIPConnection2)(nil)
	_ igdClient = (*internetgateway2.WANPPPConnection1)(nil)
	_ igdClient = (*internetgateway1.WANIPConnection1)(nil)
	_ igdClient = (*internetgateway1.WANPPPConnection1)(nil)
)

// gatewayDevice 发现结果
type gatewayDevice struct {
	client   igdClient
	location *url.URL
	kind     string
}

// ============================================================================
//                              Mapper 结构
// ============================================================================

// Mapper UPnP 端口映射器实现
type Mapper struct {
	mu             sync.Mutex
	client         igdClient
	internalClient string
	closed         bool

	description string
	discover    func(ctx context.Context) (gatewayDevice, error)
}

// 确保实现接口
var _ natif.Mapper = (*Mapper)(nil)

// Option 映射器选项
type Option func(*Mapper)

// WithDescription 设置映射描述
func WithDescription(desc string) Option {
	return func(m *Mapper) {
		m.description = desc
	}
}

// NewMapper 创建 UPnP 映射器
//
// 网关在第一次请求时才发现。
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		description: "bonjour",
		discover:    discoverGateway,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name 返回映射器名称
func (m *Mapper) Name() string {
	return "upnp"
}

// ExternalAddress 获取外部地址
func (m *Mapper) ExternalAddress(ctx context.Context) (netip.Addr, error) {
	c, _, err := m.ensureClient(ctx)
	if err != nil {
		return netip.Addr{}, err
	}

	s, err := c.GetExternalIPAddressCtx(ctx)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", natif.ErrUnsupported, err)
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: bad external address %q", natif.ErrUnsupported, s)
	}
	return addr.Unmap(), nil
}

// AddMapping 添加端口映射
//
// UPnP 需要显式的外部端口，requestedPort 为 0 时使用内部端口。
func (m *Mapper) AddMapping(ctx context.Context, protocol string, internalPort, requestedPort uint16, lease time.Duration) (natif.Mapping, error) {
	c, internalClient, err := m.ensureClient(ctx)
	if err != nil {
		return natif.Mapping{}, err
	}

	externalPort := requestedPort
	if externalPort == 0 {
		externalPort = internalPort
	}

	leaseSeconds := uint32(lease / time.Second)
	if leaseSeconds == 0 {
		leaseSeconds = defaultLease
	}

	// remoteHost 为空表示任意
	err = c.AddPortMappingCtx(ctx, "", externalPort, igdProtocol(protocol),
		internalPort, internalClient, true, m.description, leaseSeconds)
	if err != nil {
		log.Warn("UPnP 端口映射失败",
			"protocol", protocol,
			"port", internalPort,
			"err", err)
		return natif.Mapping{}, fmt.Errorf("%w: %v", natif.ErrMappingFailed, err)
	}

	log.Debug("UPnP 端口映射成功",
		"protocol", protocol,
		"internalPort", internalPort,
		"externalPort", externalPort,
		"internalClient", internalClient)

	return natif.Mapping{
		Protocol:     strings.ToLower(igdProtocol(protocol)),
		InternalPort: internalPort,
		ExternalPort: externalPort,
		Lifetime:     time.Duration(leaseSeconds) * time.Second,
	}, nil
}

// DeleteMapping 删除端口映射
func (m *Mapper) DeleteMapping(ctx context.Context, protocol string, internalPort, externalPort uint16) error {
	m.mu.Lock()
	c := m.client
	m.mu.Unlock()

	if c == nil {
		return nil // 没有网关，无需删除
	}

	if err := c.DeletePortMappingCtx(ctx, "", externalPort, igdProtocol(protocol)); err != nil {
		log.Debug("删除 UPnP 端口映射失败",
			"protocol", protocol,
			"externalPort", externalPort,
			"err", err)
		return fmt.Errorf("%w: %v", natif.ErrMappingFailed, err)
	}

	log.Debug("UPnP 端口映射已删除",
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

func (m *Mapper) ensureClient(ctx context.Context) (igdClient, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, "", natif.ErrMapperClosed
	}
	if m.client != nil {
		return m.client, m.internalClient, nil
	}

	dev, err := m.discover(ctx)
	if err != nil {
		return nil, "", err
	}

	internalClient, err := internalClientFor(dev.location)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", natif.ErrNoGateway, err)
	}

	m.client = dev.client
	m.internalClient = internalClient
	log.Info("发现 UPnP 网关", "kind", dev.kind, "location", dev.location, "internalClient", internalClient)
	return m.client, m.internalClient, nil
}

// discoverGateway 按顺序尝试各种 IGD 服务
func discoverGateway(ctx context.Context) (gatewayDevice, error) {
	log.Debug("开始发现 UPnP 网关...")

	// 1) IGDv2: WANIPConnection2
	if clients, _, err := internetgateway2.NewWANIPConnection2ClientsCtx(ctx); err == nil && len(clients) > 0 {
		return gatewayDevice{clients[0], clients[0].Location, "IGDv2-WANIPConnection2"}, nil
	}

	// 2) IGDv2: WANPPPConnection1
	if clients, _, err := internetgateway2.NewWANPPPConnection1ClientsCtx(ctx); err == nil && len(clients) > 0 {
		return gatewayDevice{clients[0], clients[0].Location, "IGDv2-WANPPPConnection1"}, nil
	}

	// 3) IGDv1: WANIPConnection1
	if clients, _, err := internetgateway1.NewWANIPConnection1ClientsCtx(ctx); err == nil && len(clients) > 0 {
		return gatewayDevice{clients[0], clients[0].Location, "IGDv1-WANIPConnection1"}, nil
	}

	// 4) IGDv1: WANPPPConnection1
	if clients, _, err := internetgateway1.NewWANPPPConnection1ClientsCtx(ctx); err == nil && len(clients) > 0 {
		return gatewayDevice{clients[0], clients[0].Location, "IGDv1-WANPPPConnection1"}, nil
	}

	if err := ctx.Err(); err != nil {
		return gatewayDevice{}, fmt.Errorf("%w: %v", natif.ErrNoGateway, err)
	}
	return gatewayDevice{}, natif.ErrNoGateway
}

// internalClientFor 本机访问网关时使用的地址，作为映射的内部客户端
func internalClientFor(location *url.URL) (string, error) {
	if location == nil {
		return "", fmt.Errorf("gateway location unknown")
	}
	gw := addrutil.ExtractIP(location.Host)
	if !gw.IsValid() {
		return "", fmt.Errorf("gateway location %q has no IP", location.Host)
	}
	src, err := addrutil.SourceAddrForDest(gw)
	if err != nil {
		return "", err
	}
	return src.String(), nil
}

// igdProtocol UPnP 使用大写协议名
func igdProtocol(p string) string {
	if strings.EqualFold(p, natif.ProtocolTCP) {
		return "TCP"
	}
	return "UDP"
}
