package responder

import (
	"github.com/dep2p/go-bonjour/pkg/types"
)

// 以下操作保留在公开接口上以兼容 DNS-SD 调用方，本实现一律返回
// ErrUnsupported，不产生任何副作用，也不会调用回调。

// RecordRef 记录句柄，本实现不会产生
type RecordRef struct{}

// RegisterRecordReply 记录注册回调
type RegisterRecordReply func(ref ServiceRef, record *RecordRef, flags types.Flags, errorCode types.ErrorCode, context any)

// DomainEnumReply 域枚举回调
type DomainEnumReply func(ref ServiceRef, flags types.Flags, interfaceIndex uint32, errorCode types.ErrorCode, replyDomain string, context any)

// CreateConnection 创建共享连接
func (r *Responder) CreateConnection() (ServiceRef, error) {
	return nil, types.ErrUnsupported
}

// RegisterRecord 在共享连接上注册单条记录
func (r *Responder) RegisterRecord(
	ref ServiceRef,
	flags types.Flags,
	interfaceIndex uint32,
	fullname string,
	rrtype, rrclass uint16,
	rdata []byte,
	ttl uint32,
	callback RegisterRecordReply,
	context any,
) (*RecordRef, error) {
	return nil, types.ErrUnsupported
}

// AddRecord 为已注册服务追加记录
func (r *Responder) AddRecord(ref ServiceRef, flags types.Flags, rrtype uint16, rdata []byte, ttl uint32) (*RecordRef, error) {
	return nil, types.ErrUnsupported
}

// UpdateRecord 更新记录数据
func (r *Responder) UpdateRecord(ref ServiceRef, record *RecordRef, flags types.Flags, rdata []byte, ttl uint32) error {
	return types.ErrUnsupported
}

// RemoveRecord 移除记录
func (r *Responder) RemoveRecord(ref ServiceRef, record *RecordRef, flags types.Flags) error {
	return types.ErrUnsupported
}

// ReconfirmRecord 请求重新确认缓存记录
func (r *Responder) ReconfirmRecord(
	flags types.Flags,
	interfaceIndex uint32,
	fullname string,
	rrtype, rrclass uint16,
	rdata []byte,
) error {
	return types.ErrUnsupported
}

// EnumerateDomains 枚举浏览 / 注册域
func (r *Responder) EnumerateDomains(
	flags types.Flags,
	interfaceIndex uint32,
	callback DomainEnumReply,
	context any,
) (ServiceRef, error) {
	return nil, types.ErrUnsupported
}
