package bonjour

import (
	"github.com/dep2p/go-bonjour/config"
	"github.com/dep2p/go-bonjour/internal/engine/mdns"
	"github.com/dep2p/go-bonjour/internal/logbridge"
	"github.com/dep2p/go-bonjour/internal/responder"
	"github.com/dep2p/go-bonjour/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前版本
const Version = "v0.1.0"

// BuildInfo 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string

	// GoVersion Go 版本
	GoVersion string
)

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "go-bonjour " + Version
	if GitCommit != "" {
		info += " (" + GitCommit[:min(8, len(GitCommit))] + ")"
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}

// EngineVersion 内置 mDNS 引擎的版本号
const EngineVersion = mdns.DaemonVersion

// ════════════════════════════════════════════════════════════════════════════
//                              类型别名
// ════════════════════════════════════════════════════════════════════════════

type (
	// Responder 响应器集成层
	Responder = responder.Responder

	// ServiceRef 操作句柄
	ServiceRef = responder.ServiceRef

	// NATPortMapping NAT 端口映射请求
	NATPortMapping = responder.NATPortMapping

	// NATPortMappingReply 映射结果回调
	NATPortMappingReply = responder.NATPortMappingReply

	// Config 完整配置
	Config = config.Config

	// LogSink 宿主日志回调
	LogSink = logbridge.Sink

	// ErrorCode 状态码
	ErrorCode = types.ErrorCode

	// Flags 操作标志
	Flags = types.Flags

	// Protocol 映射协议位
	Protocol = types.Protocol

	// IPPort 网络字节序端口
	IPPort = types.IPPort

	// Tag 日志标签
	Tag = types.Tag
)

// 映射协议
const (
	ProtocolNone = types.ProtocolNone
	ProtocolUDP  = types.ProtocolUDP
	ProtocolTCP  = types.ProtocolTCP
)

// 日志标签
const (
	TagWarning = types.TagWarning
	TagInfo    = types.TagInfo
	TagVerbose = types.TagVerbose
	TagDebug   = types.TagDebug
)

// 事件循环驱动
const (
	DriverAuto   = config.DriverAuto
	DriverSelect = config.DriverSelect
	DriverPoll   = config.DriverPoll
)

// NewIPPort 从主机字节序端口构造 IPPort
func NewIPPort(port uint16) IPPort {
	return types.NewIPPort(port)
}
