package responder

import (
	"encoding/binary"

	"github.com/dep2p/go-bonjour/pkg/types"
)

// PropertyDaemonVersion 守护进程版本属性名
const PropertyDaemonVersion = "DaemonVersion"

// daemonVersionSize DaemonVersion 的值长度
const daemonVersionSize = 4

// GetProperty 查询属性
//
// 已知属性写入 result 并把 *size 置为值长度；未知属性把 *size 置 0 并返回 nil。
// property 为空、result 或 size 为 nil、result 容量不足时返回 ErrBadParam。
// 值按本机字节序写入。
func (r *Responder) GetProperty(property string, result []byte, size *uint32) error {
	if property == "" || result == nil || size == nil {
		return types.ErrBadParam
	}

	switch property {
	case PropertyDaemonVersion:
		if len(result) < daemonVersionSize {
			return types.ErrBadParam
		}
		binary.NativeEndian.PutUint32(result, r.engine.Version())
		*size = daemonVersionSize
	default:
		*size = 0
	}
	return nil
}
