// Package addrutil 提供地址解析与选择工具
package addrutil

import (
	"net"
	"net/netip"
)

// ============================================================================
//                              IP 类型判断工具
// ============================================================================

// ExtractIP 从地址字符串中提取 IP 地址
//
// 支持格式：
//   - host:port: 1.2.3.4:5353
//   - [ipv6]:port: [fe80::1%eth0]:5353
//   - 纯 IP: 1.2.3.4 / ::1
//
// 无法解析时返回零值。IPv4 映射的 IPv6 地址会被还原为 IPv4。
func ExtractIP(addr string) netip.Addr {
	if addr == "" {
		return netip.Addr{}
	}
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap()
	}
	if ip, err := netip.ParseAddr(addr); err == nil {
		return ip.Unmap()
	}
	return netip.Addr{}
}

// FromNetIP 将 net.IP 转换为 netip.Addr，IPv4 映射地址还原为 IPv4
func FromNetIP(ip net.IP) netip.Addr {
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return a.Unmap()
}

// IsPrivate 判断是否是私网地址（含链路本地）
//
//   - 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16
//   - fc00::/7 (IPv6 ULA)
//   - 169.254.0.0/16, fe80::/10 (链路本地)
func IsPrivate(ip netip.Addr) bool {
	return ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// IsPublic 判断是否是公网地址：非回环、非私网、非链路本地的有效单播地址
func IsPublic(ip netip.Addr) bool {
	return ip.IsGlobalUnicast() && !ip.IsPrivate()
}

// AddrType 返回地址类型描述
//
// 返回值：
//   - "loopback" - 回环地址
//   - "private" - 私网地址
//   - "public" - 公网地址
//   - "unknown" - 未知类型
func AddrType(ip netip.Addr) string {
	switch {
	case !ip.IsValid():
		return "unknown"
	case ip.IsLoopback():
		return "loopback"
	case IsPrivate(ip):
		return "private"
	case IsPublic(ip):
		return "public"
	default:
		return "unknown"
	}
}
