//go:build unix

package mdns

import (
	"errors"
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// errWouldBlock 套接字上暂无报文
var errWouldBlock = errors.New("mdns: no datagram ready")

// reuseControl 允许与系统中其它 mDNS 实现共享 5353 端口
func reuseControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = err
			return
		}
		// 部分平台不支持 SO_REUSEPORT，忽略错误
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// socketFD 返回套接字的文件描述符，失败时返回 -1
func socketFD(conn net.PacketConn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	_ = raw.Control(func(f uintptr) {
		fd = int(f)
	})
	return fd
}

// readReady 只尝试一次 recvmsg 读取报文，没有数据时立即返回 errWouldBlock
//
// 套接字由运行时设为非阻塞，这里不等待也不设置读超时。
func (s *socket) readReady(buf []byte) (datagram, error) {
	sc, ok := s.conn.(syscall.Conn)
	if !ok {
		return datagram{}, errWouldBlock
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return datagram{}, err
	}

	var oob []byte
	if s.v4 != nil {
		oob = ipv4.NewControlMessage(ipv4.FlagInterface | ipv4.FlagDst)
	} else {
		oob = ipv6.NewControlMessage(ipv6.FlagInterface | ipv6.FlagDst)
	}

	var (
		n, oobn int
		from    unix.Sockaddr
		rerr    error
	)
	if err := raw.Read(func(fd uintptr) bool {
		n, oobn, _, from, rerr = unix.Recvmsg(int(fd), buf, oob, 0)
		return true
	}); err != nil {
		return datagram{}, err
	}
	if rerr != nil {
		if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EWOULDBLOCK) || errors.Is(rerr, unix.EINTR) {
			return datagram{}, errWouldBlock
		}
		return datagram{}, rerr
	}

	pkt := datagram{data: make([]byte, n)}
	copy(pkt.data, buf[:n])

	if oobn > 0 {
		if s.v4 != nil {
			var cm ipv4.ControlMessage
			if cm.Parse(oob[:oobn]) == nil {
				pkt.ifIndex = cm.IfIndex
			}
		} else {
			var cm ipv6.ControlMessage
			if cm.Parse(oob[:oobn]) == nil {
				pkt.ifIndex = cm.IfIndex
			}
		}
	}

	switch sa := from.(type) {
	case *unix.SockaddrInet4:
		pkt.src = netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		pkt.src = netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), uint16(sa.Port))
	}
	return pkt, nil
}
