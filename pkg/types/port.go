package types

import (
	"encoding/binary"
	"strconv"
)

// IPPort 网络字节序的端口号
//
// 数值的内存布局与网络报文一致（大端）。集成层原样透传，
// 只有在需要展示或交给网关时才转换为主机字节序。
type IPPort uint16

// NewIPPort 从主机字节序端口构造 IPPort
func NewIPPort(port uint16) IPPort {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], port)
	return IPPort(binary.NativeEndian.Uint16(b[:]))
}

// Host 返回主机字节序端口
func (p IPPort) Host() uint16 {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], uint16(p))
	return binary.BigEndian.Uint16(b[:])
}

// IsZero 端口是否为 0（与字节序无关）
func (p IPPort) IsZero() bool {
	return p == 0
}

// String 返回主机字节序的十进制表示
func (p IPPort) String() string {
	return strconv.Itoa(int(p.Host()))
}
