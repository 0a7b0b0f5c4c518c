package types

import "fmt"

// ============================================================================
//                              Flags - 操作标志
// ============================================================================

// Flags 操作标志位，由调用方传入并在回调中原样带回
type Flags uint32

// 常用标志位
const (
	FlagsNone       Flags = 0
	FlagsMoreComing Flags = 0x1
	FlagsAdd        Flags = 0x2
	FlagsDefault    Flags = 0x4
	FlagsShared     Flags = 0x10
	FlagsUnique     Flags = 0x20
)

// ============================================================================
//                              Protocol - 穿透协议
// ============================================================================

// Protocol NAT 端口映射协议位
type Protocol uint32

const (
	// ProtocolNone 仅请求公网地址
	ProtocolNone Protocol = 0
	// ProtocolIPv4 IPv4
	ProtocolIPv4 Protocol = 0x01
	// ProtocolIPv6 IPv6
	ProtocolIPv6 Protocol = 0x02
	// ProtocolUDP UDP 映射
	ProtocolUDP Protocol = 0x10
	// ProtocolTCP TCP 映射
	ProtocolTCP Protocol = 0x20
)

// String 返回协议的字符串表示
func (p Protocol) String() string {
	switch p {
	case ProtocolNone:
		return "none"
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP | ProtocolTCP:
		return "udp+tcp"
	default:
		return fmt.Sprintf("0x%X", uint32(p))
	}
}

// ============================================================================
//                              Tag - 日志标签
// ============================================================================

// Tag 转发给宿主日志回调的标签，取值为封闭集合 {W, I, V, D}
type Tag byte

const (
	// TagWarning 严重错误
	TagWarning Tag = 'W'
	// TagInfo 运行信息
	TagInfo Tag = 'I'
	// TagVerbose 低优先级信息
	TagVerbose Tag = 'V'
	// TagDebug 默认/未分类
	TagDebug Tag = 'D'
)

// String 返回标签名称
func (t Tag) String() string {
	switch t {
	case TagWarning:
		return "Warning"
	case TagInfo:
		return "Info"
	case TagVerbose:
		return "Verbose"
	default:
		return "Debug"
	}
}

// ============================================================================
//                              Severity - 引擎日志级别
// ============================================================================

// Severity 引擎内部日志级别（POSIX 平台）
type Severity int

const (
	// SeverityMsg 严重消息
	SeverityMsg Severity = iota
	// SeverityOperation 操作日志
	SeverityOperation
	// SeveritySPS 睡眠代理日志
	SeveritySPS
	// SeverityInfo 一般信息
	SeverityInfo
	// SeverityDebug 调试信息
	SeverityDebug
)

// EventType Windows 事件日志风格的级别
type EventType int

const (
	// EventSuccess 成功事件
	EventSuccess EventType = 0x0000
	// EventError 错误事件
	EventError EventType = 0x0001
	// EventWarning 警告事件
	EventWarning EventType = 0x0002
	// EventInformation 信息事件
	EventInformation EventType = 0x0004
)
