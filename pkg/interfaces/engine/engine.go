// Package engine 定义 DNS 响应器引擎的协作契约
//
// 引擎负责 mDNS 协议状态机（记录缓存、探测、冲突检测、应答）以及其下的
// 平台套接字抽象。响应器集成层只通过本包定义的接口与引擎交互：
//   - 生命周期：Init / Close
//   - 事件循环：SelectEngine（就绪集合）或 PollEngine（执行 + 轮询）
//   - 网卡：ResolveInterfaceID / InterfaceIndex
//   - NAT：StartNATOperation / StopNATOperation
//   - 日志：InitOptions.Log 入站回调
package engine

import (
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"github.com/dep2p/go-bonjour/pkg/types"
)

// ============================================================================
//                              资源记录缓存
// ============================================================================

// CacheSize 资源记录缓存槽位数量
const CacheSize = 500

// CacheEntity 一个缓存槽位
//
// 槽位由集成层持有、由引擎独占修改，集成层从不读取其内容。
type CacheEntity struct {
	// Record 缓存的资源记录
	Record dns.RR

	// InterfaceID 记录来源网卡
	InterfaceID InterfaceID

	// Received 收到时间
	Received time.Time

	// Expires 过期时间
	Expires time.Time

	// InUse 槽位是否被占用
	InUse bool
}

// CacheStore 固定容量的缓存池
type CacheStore [CacheSize]CacheEntity

// ============================================================================
//                              网卡标识
// ============================================================================

// InterfaceID 引擎内部的网卡标识，对集成层不透明
type InterfaceID int

// InterfaceAny 表示任意网卡
const InterfaceAny InterfaceID = 0

// ============================================================================
//                              日志
// ============================================================================

// LogFunc 引擎向集成层输出日志的入站回调
type LogFunc func(severity types.Severity, msg string)

// ============================================================================
//                              初始化
// ============================================================================

// InitOptions 引擎初始化参数
type InitOptions struct {
	// AdvertiseLocalAddresses 是否自动通告本机地址记录
	AdvertiseLocalAddresses bool

	// InitCallback 初始化完成回调，nil 表示不需要
	InitCallback func(err error)

	// Log 引擎日志出口
	Log LogFunc
}

// ============================================================================
//                              NAT 穿透请求
// ============================================================================

// NATOp 引擎内部的 NAT 操作类型
type NATOp int

const (
	// NATOpAddrRequest 仅请求公网地址
	NATOpAddrRequest NATOp = iota
	// NATOpMapUDP UDP 端口映射
	NATOpMapUDP
	// NATOpMapTCP TCP 端口映射
	NATOpMapTCP
)

// String 返回操作类型名称
func (op NATOp) String() string {
	switch op {
	case NATOpAddrRequest:
		return "addr"
	case NATOpMapUDP:
		return "udp"
	case NATOpMapTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// NATTraversalInfo 一次 NAT 穿透请求
//
// 请求字段由集成层填写；结果字段由引擎在每次有结果时更新，
// 随后调用 ClientCallback。
type NATTraversalInfo struct {
	// ---- 请求 ----

	// InterfaceID 请求所在网卡（InterfaceAny 表示任意）
	InterfaceID InterfaceID
	// Protocol 操作类型
	Protocol NATOp
	// IntPort 内部端口（网络字节序）
	IntPort types.IPPort
	// RequestedPort 期望的外部端口（网络字节序，0 表示由网关分配）
	RequestedPort types.IPPort
	// NATLease 期望租期（秒）
	NATLease uint32
	// ClientCallback 结果回调
	ClientCallback func(info *NATTraversalInfo)
	// ClientContext 调用方上下文
	ClientContext any

	// ---- 结果 ----

	// Result 本次结果状态
	Result types.ErrorCode
	// ExternalAddress 公网地址
	ExternalAddress netip.Addr
	// ExternalPort 实际分配的外部端口（网络字节序）
	ExternalPort types.IPPort
	// Lifetime 实际租期（秒）
	Lifetime uint32
}

// ============================================================================
//                              引擎接口
// ============================================================================

// Engine 所有引擎都必须实现的基础契约
type Engine interface {
	// Init 使用给定缓存池初始化引擎
	Init(cache *CacheStore, opts InitOptions) error

	// Close 关闭引擎，释放所有资源；所有未完成的 NAT 请求随之失效
	Close()

	// ResolveInterfaceID 将网卡序号解析为引擎网卡标识
	//
	// index 为 0 时返回 (InterfaceAny, true)。
	ResolveInterfaceID(index uint32) (InterfaceID, bool)

	// InterfaceIndex 将引擎网卡标识转换为网卡序号
	InterfaceIndex(id InterfaceID) uint32

	// StartNATOperation 注册 NAT 穿透请求
	StartNATOperation(info *NATTraversalInfo) error

	// StopNATOperation 注销 NAT 穿透请求
	StopNATOperation(info *NATTraversalInfo) error

	// Version 返回引擎版本号（DaemonVersion 属性）
	Version() uint32
}

// PollEngine 执行 + 轮询风格的引擎
type PollEngine interface {
	Engine

	// Execute 执行到期的周期性工作
	Execute()

	// Poll 最多阻塞 budget 等待网络事件并同步分发
	Poll(budget time.Duration)
}

// PlatformSetup 需要显式网卡列表 / DNS 配置初始化的平台引擎
type PlatformSetup interface {
	// SetupInterfaceList 建立网卡列表
	SetupInterfaceList() error

	// SetupDNSConfig 建立单播 DNS 配置
	SetupDNSConfig() error
}
