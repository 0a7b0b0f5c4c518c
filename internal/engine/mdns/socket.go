package mdns

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"go.uber.org/multierr"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// mDNS 组播组
var (
	groupIPv4 = netip.MustParseAddr("224.0.0.251")
	groupIPv6 = netip.MustParseAddr("ff02::fb")
)

// maxPacketSize 接收缓冲区大小
const maxPacketSize = 9000

// datagram 一个收到的报文
type datagram struct {
	data    []byte
	ifIndex int
	src     netip.AddrPort
}

// ============================================================================
//                              socket
// ============================================================================

// socket 一个 mDNS 组播套接字（IPv4 或 IPv6）
type socket struct {
	conn net.PacketConn
	v4   *ipv4.PacketConn
	v6   *ipv6.PacketConn
	fd   int
	port int
}

// openSocket 打开指定协议族的 mDNS 套接字并在各网卡上加入组播组
func openSocket(network string, port int, ifaces []*netIface) (*socket, error) {
	lc := net.ListenConfig{Control: reuseControl}

	host := "0.0.0.0"
	if network == "udp6" {
		host = "::"
	}
	conn, err := lc.ListenPacket(context.Background(), network, net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", network, err)
	}

	s := &socket{conn: conn, fd: -1, port: port}
	if network == "udp4" {
		s.v4 = ipv4.NewPacketConn(conn)
		_ = s.v4.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst, true)
		_ = s.v4.SetMulticastTTL(255)
		_ = s.v4.SetMulticastLoopback(true)
	} else {
		s.v6 = ipv6.NewPacketConn(conn)
		_ = s.v6.SetControlMessage(ipv6.FlagInterface|ipv6.FlagDst, true)
		_ = s.v6.SetMulticastHopLimit(255)
		_ = s.v6.SetMulticastLoopback(true)
	}

	joined := 0
	for _, n := range ifaces {
		if err := s.join(n); err != nil {
			log.Debug("加入组播组失败", "network", network, "iface", n.ifi.Name, "err", err)
			continue
		}
		joined++
	}
	if joined == 0 && len(ifaces) > 0 {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: no interface joined the mDNS group", network)
	}

	s.fd = socketFD(conn)
	return s, nil
}

// join 在网卡上加入组播组
func (s *socket) join(n *netIface) error {
	if s.v4 != nil {
		if len(n.v4) == 0 {
			return errNoFamilyAddress
		}
		return s.v4.JoinGroup(&n.ifi, &net.UDPAddr{IP: groupIPv4.AsSlice()})
	}
	if len(n.v6) == 0 {
		return errNoFamilyAddress
	}
	return s.v6.JoinGroup(&n.ifi, &net.UDPAddr{IP: groupIPv6.AsSlice()})
}

// is4 是否为 IPv4 套接字
func (s *socket) is4() bool {
	return s.v4 != nil
}

// read 读取一个报文
func (s *socket) read(buf []byte) (datagram, error) {
	var (
		n       int
		ifIndex int
		src     net.Addr
		err     error
	)
	if s.v4 != nil {
		var cm *ipv4.ControlMessage
		n, cm, src, err = s.v4.ReadFrom(buf)
		if cm != nil {
			ifIndex = cm.IfIndex
		}
	} else {
		var cm *ipv6.ControlMessage
		n, cm, src, err = s.v6.ReadFrom(buf)
		if cm != nil {
			ifIndex = cm.IfIndex
		}
	}
	if err != nil {
		return datagram{}, err
	}

	var from netip.AddrPort
	if udp, ok := src.(*net.UDPAddr); ok {
		from = udp.AddrPort()
		from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
	}
	data := make([]byte, n)
	copy(data, buf[:n])
	return datagram{data: data, ifIndex: ifIndex, src: from}, nil
}

// sendMulticast 在指定网卡上发送组播报文
func (s *socket) sendMulticast(b []byte, n *netIface) error {
	if s.v4 != nil {
		if err := s.v4.SetMulticastInterface(&n.ifi); err != nil {
			return err
		}
		_, err := s.v4.WriteTo(b, nil, &net.UDPAddr{IP: groupIPv4.AsSlice(), Port: s.port})
		return err
	}
	if err := s.v6.SetMulticastInterface(&n.ifi); err != nil {
		return err
	}
	_, err := s.v6.WriteTo(b, nil, &net.UDPAddr{IP: groupIPv6.AsSlice(), Port: s.port})
	return err
}

// sendUnicast 发送单播报文
func (s *socket) sendUnicast(b []byte, dst netip.AddrPort) error {
	_, err := s.conn.WriteTo(b, net.UDPAddrFromAddrPort(dst))
	return err
}

// Close 关闭套接字
func (s *socket) Close() error {
	return s.conn.Close()
}

// closeSockets 关闭所有套接字并合并错误
func closeSockets(sockets []*socket) error {
	var errs error
	for _, s := range sockets {
		errs = multierr.Append(errs, s.Close())
	}
	return errs
}
