package addrutil

import (
	"errors"
	"net"
	"net/netip"
)

// ErrNoSourceAddr 无法确定源地址
var ErrNoSourceAddr = errors.New("addrutil: no source address for destination")

// SourceAddrForDest 返回本机访问 dest 时使用的源地址
//
// 通过连接一个 UDP 套接字让内核选路，不发送任何数据。
func SourceAddrForDest(dest netip.Addr) (netip.Addr, error) {
	if !dest.IsValid() {
		return netip.Addr{}, ErrNoSourceAddr
	}

	conn, err := net.DialUDP("udp", nil, net.UDPAddrFromAddrPort(netip.AddrPortFrom(dest, 9)))
	if err != nil {
		return netip.Addr{}, err
	}
	defer func() { _ = conn.Close() }()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, ErrNoSourceAddr
	}
	src := local.AddrPort().Addr().Unmap()
	if !src.IsValid() || src.IsUnspecified() {
		return netip.Addr{}, ErrNoSourceAddr
	}
	return src, nil
}

// InterfaceAddrs 返回网卡上的 IPv4 与 IPv6 单播地址
//
// IPv6 链路本地地址会带上网卡 zone。
func InterfaceAddrs(ifi *net.Interface) (v4, v6 []netip.Addr) {
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, nil
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := FromNetIP(ipNet.IP)
		if !ip.IsValid() || ip.IsMulticast() || ip.IsUnspecified() {
			continue
		}
		if ip.Is4() {
			v4 = append(v4, ip)
			continue
		}
		if ip.IsLinkLocalUnicast() {
			ip = ip.WithZone(ifi.Name)
		}
		v6 = append(v6, ip)
	}
	return v4, v6
}
