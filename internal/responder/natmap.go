package responder

import (
	"net/netip"

	"github.com/google/uuid"

	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
	"github.com/dep2p/go-bonjour/pkg/types"
)

// ============================================================================
//                              服务句柄
// ============================================================================

// ServiceRef 调用方持有的操作句柄
//
// 封闭接口：目前唯一的实现是 *NATPortMapping。
type ServiceRef interface {
	// Dispose 释放句柄；之后不会再有回调
	Dispose() error

	serviceRef()
}

// NATPortMappingReply NAT 端口映射结果回调
//
// 每当引擎为该请求产生结果（包括续约与过期）时调用一次，
// 且只在 Process 内部同步调用。端口均为网络字节序。
type NATPortMappingReply func(
	ref ServiceRef,
	flags types.Flags,
	interfaceIndex uint32,
	errorCode types.ErrorCode,
	externalAddress netip.Addr,
	protocol types.Protocol,
	internalPort types.IPPort,
	externalPort types.IPPort,
	ttl uint32,
	context any,
)

// ============================================================================
//                              NATPortMapping
// ============================================================================

// NATPortMapping 一次 NAT 端口映射（或公网地址）请求
type NATPortMapping struct {
	id uuid.UUID
	r  *Responder

	flags    types.Flags
	callback NATPortMappingReply
	context  any

	info engineif.NATTraversalInfo

	// disposed 调用方已释放
	disposed bool
	// invalid 引擎已关闭，请求随之失效
	invalid bool
}

var _ ServiceRef = (*NATPortMapping)(nil)

func (*NATPortMapping) serviceRef() {}

// ID 请求的追踪标识
func (op *NATPortMapping) ID() uuid.UUID {
	return op.id
}

// NATPortMappingCreate 创建 NAT 端口映射请求
//
// protocol 为 ProtocolNone 时表示只请求公网地址，此时 internalPort、
// externalPort、ttl 必须全为 0。否则 internalPort 不能为 0，protocol
// 必须是 UDP、TCP 或两者之一。参数非法时返回 ErrBadParam 且不会注册任何请求。
//
// 结果通过 callback 在后续的 Process 调用中异步交付。
func (r *Responder) NATPortMappingCreate(
	flags types.Flags,
	interfaceIndex uint32,
	protocol types.Protocol,
	internalPort types.IPPort,
	externalPort types.IPPort,
	ttl uint32,
	callback NATPortMappingReply,
	context any,
) (*NATPortMapping, error) {
	if !r.Running() {
		return nil, types.ErrServiceNotRunning
	}

	ifID, ok := r.engine.ResolveInterfaceID(interfaceIndex)
	if !ok {
		r.log.Debug("NATPortMappingCreate: 网卡序号无效", "interface", interfaceIndex)
		return nil, types.ErrBadParam
	}
	if err := validateNATRequest(protocol, internalPort, externalPort, ttl); err != nil {
		r.log.Debug("NATPortMappingCreate: 参数无效",
			"protocol", protocol, "internal", internalPort, "external", externalPort, "ttl", ttl)
		return nil, err
	}

	op := &NATPortMapping{
		id:       uuid.New(),
		r:        r,
		flags:    flags,
		callback: callback,
		context:  context,
	}
	op.info = engineif.NATTraversalInfo{
		InterfaceID:   ifID,
		Protocol:      natOpForProtocol(protocol),
		IntPort:       internalPort,
		RequestedPort: externalPort,
		NATLease:      ttl,
		ClientContext: op,
	}
	op.info.ClientCallback = op.deliver

	r.log.Info("NATPortMappingCreate START",
		"id", op.id,
		"protocol", protocol,
		"internal", internalPort,
		"external", externalPort,
		"ttl", ttl,
	)

	if err := r.engine.StartNATOperation(&op.info); err != nil {
		r.log.Warn("NATPortMappingCreate: 注册失败", "id", op.id, "err", err)
		return nil, err
	}

	r.ops[op] = struct{}{}
	r.metrics.natActive.Inc()
	return op, nil
}

// validateNATRequest 检查参数组合
func validateNATRequest(protocol types.Protocol, internalPort, externalPort types.IPPort, ttl uint32) error {
	switch protocol {
	case types.ProtocolNone:
		if !internalPort.IsZero() || !externalPort.IsZero() || ttl != 0 {
			return types.ErrBadParam
		}
	case types.ProtocolUDP, types.ProtocolTCP, types.ProtocolUDP | types.ProtocolTCP:
		if internalPort.IsZero() {
			return types.ErrBadParam
		}
	default:
		return types.ErrBadParam
	}
	return nil
}

// natOpForProtocol 协议位到引擎操作类型
//
// 同时请求 UDP 与 TCP 时按 TCP 映射。
func natOpForProtocol(p types.Protocol) engineif.NATOp {
	switch p {
	case types.ProtocolNone:
		return engineif.NATOpAddrRequest
	case types.ProtocolUDP:
		return engineif.NATOpMapUDP
	default:
		return engineif.NATOpMapTCP
	}
}

// protocolForNATOp 引擎操作类型到协议位
func protocolForNATOp(op engineif.NATOp) types.Protocol {
	switch op {
	case engineif.NATOpMapUDP:
		return types.ProtocolUDP
	case engineif.NATOpMapTCP:
		return types.ProtocolTCP
	default:
		return types.ProtocolNone
	}
}

// deliver 引擎结果回调
//
// 已释放或已失效的请求直接丢弃迟到的结果。
func (op *NATPortMapping) deliver(info *engineif.NATTraversalInfo) {
	if op.disposed || op.invalid {
		return
	}

	r := op.r
	r.log.Info("NATPortMappingCreate RESULT",
		"id", op.id,
		"result", int32(info.Result),
		"address", info.ExternalAddress,
		"internal", info.IntPort,
		"external", info.ExternalPort,
		"lifetime", info.Lifetime,
	)
	r.metrics.natResult(info.Result)

	if op.callback == nil {
		return
	}
	op.callback(
		op,
		op.flags,
		r.engine.InterfaceIndex(info.InterfaceID),
		info.Result,
		info.ExternalAddress,
		protocolForNATOp(info.Protocol),
		info.IntPort,
		info.ExternalPort,
		info.Lifetime,
		op.context,
	)
}

// Dispose 释放请求
//
// 重复释放返回 ErrBadReference 且不再触碰引擎。引擎已关闭时只做本地标记。
// 可以在结果回调内部调用。
func (op *NATPortMapping) Dispose() error {
	if op == nil || op.r == nil {
		return types.ErrBadReference
	}
	r := op.r
	if op.disposed {
		r.log.Warn("NATPortMapping: 重复释放", "id", op.id)
		return types.ErrBadReference
	}
	op.disposed = true

	if op.invalid {
		r.log.Debug("NATPortMappingCreate STOP (引擎已关闭)", "id", op.id)
		return nil
	}

	delete(r.ops, op)
	r.metrics.natActive.Dec()
	r.log.Info("NATPortMappingCreate STOP", "id", op.id)

	if err := r.engine.StopNATOperation(&op.info); err != nil {
		r.log.Debug("注销 NAT 请求失败", "id", op.id, "err", err)
		return err
	}
	return nil
}
