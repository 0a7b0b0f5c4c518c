// Package nat 定义 NAT 端口映射接口
//
// 引擎的 NAT 子系统通过 Mapper 与网关交互，具体实现有：
//   - NAT-PMP（internal/engine/nat/natpmp）
//   - UPnP IGD（internal/engine/nat/upnp）
package nat

import (
	"context"
	"errors"
	"net/netip"
	"time"
)

// 映射协议
const (
	ProtocolUDP = "udp"
	ProtocolTCP = "tcp"
)

// NAT 映射错误
var (
	// ErrNoGateway 未找到网关
	ErrNoGateway = errors.New("nat: no gateway found")

	// ErrUnsupported 网关不支持该协议
	ErrUnsupported = errors.New("nat: port mapping not supported by gateway")

	// ErrMappingFailed 映射请求被拒绝
	ErrMappingFailed = errors.New("nat: port mapping failed")

	// ErrMapperClosed 映射器已关闭
	ErrMapperClosed = errors.New("nat: mapper closed")
)

// Mapping 网关授予的映射
type Mapping struct {
	// Protocol "udp" 或 "tcp"
	Protocol string

	// InternalPort 内部端口（主机字节序）
	InternalPort uint16

	// ExternalPort 实际分配的外部端口（主机字节序）
	ExternalPort uint16

	// Lifetime 实际租期
	Lifetime time.Duration
}

// Mapper 端口映射器
//
// 所有方法都可能阻塞在网络 I/O 上，必须遵守 ctx 的取消与超时。
// 实现需要支持并发调用。
type Mapper interface {
	// Name 映射器名称
	Name() string

	// ExternalAddress 获取网关公网地址
	ExternalAddress(ctx context.Context) (netip.Addr, error)

	// AddMapping 请求映射；requestedPort 为 0 时由网关决定
	AddMapping(ctx context.Context, protocol string, internalPort, requestedPort uint16, lease time.Duration) (Mapping, error)

	// DeleteMapping 删除映射
	DeleteMapping(ctx context.Context, protocol string, internalPort, externalPort uint16) error

	// Close 关闭映射器
	Close() error
}
