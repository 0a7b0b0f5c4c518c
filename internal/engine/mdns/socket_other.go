//go:build !unix

package mdns

import (
	"net"
	"syscall"
)

// reuseControl 非 unix 平台不设置地址复用
func reuseControl(_, _ string, _ syscall.RawConn) error {
	return nil
}

// socketFD 非 unix 平台不使用文件描述符
func socketFD(net.PacketConn) int {
	return -1
}
