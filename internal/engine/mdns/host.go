package mdns

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// 探测参数（RFC 6762 第 8.1 节）
const (
	probeCount    = 3
	probeInterval = 250 * time.Millisecond
)

// hostState 主机名状态
type hostState int

const (
	// hostProbing 正在探测名称是否被占用
	hostProbing hostState = iota
	// hostAnnouncing 正在通告
	hostAnnouncing
	// hostEstablished 已确立
	hostEstablished
)

// String 返回状态名称
func (s hostState) String() string {
	switch s {
	case hostProbing:
		return "probing"
	case hostAnnouncing:
		return "announcing"
	default:
		return "established"
	}
}

// ============================================================================
//                              hostRecords
// ============================================================================

// hostRecords 本机地址记录及其探测 / 通告状态
type hostRecords struct {
	base   string
	label  string
	domain string
	ttl    uint32

	state     hostState
	sent      int
	nextAt    time.Time
	conflicts int

	announceCount    int
	announceInterval time.Duration
}

// newHostRecords 创建主机记录，hostname 为空时使用系统主机名
func newHostRecords(hostname, domain string, ttl uint32, announceCount int, announceInterval time.Duration) (*hostRecords, error) {
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("mdns: hostname: %w", err)
		}
		hostname = h
	}
	label := sanitizeLabel(hostname)
	if label == "" {
		return nil, fmt.Errorf("mdns: unusable hostname %q", hostname)
	}
	return &hostRecords{
		base:             label,
		label:            label,
		domain:           strings.Trim(domain, "."),
		ttl:              ttl,
		announceCount:    announceCount,
		announceInterval: announceInterval,
	}, nil
}

// fqdn 完整主机名，例如 myhost.local.
func (h *hostRecords) fqdn() string {
	return dns.Fqdn(h.label + "." + h.domain)
}

// matches 名称是否为本机主机名
func (h *hostRecords) matches(name string) bool {
	return strings.EqualFold(dns.Fqdn(name), h.fqdn())
}

// restart 从探测阶段重新开始
func (h *hostRecords) restart(now time.Time) {
	h.state = hostProbing
	h.sent = 0
	h.nextAt = now
}

// rename 冲突后改名并重新探测，返回新名称
func (h *hostRecords) rename(now time.Time) string {
	h.conflicts++
	h.label = fmt.Sprintf("%s-%d", h.base, h.conflicts+1)
	h.restart(now)
	return h.fqdn()
}

// records 网卡上的地址记录
func (h *hostRecords) records(n *netIface, v4, v6 bool, ttl uint32, flush bool) []dns.RR {
	class := uint16(dns.ClassINET)
	if flush {
		class |= classCacheFlush
	}
	name := h.fqdn()

	var out []dns.RR
	if v4 {
		for _, a := range n.v4 {
			out = append(out, &dns.A{
				Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: class, Ttl: ttl},
				A:   a.AsSlice(),
			})
		}
	}
	if v6 {
		for _, a := range n.v6 {
			out = append(out, &dns.AAAA{
				Hdr:  dns.RR_Header{Name: name, Rrtype: dns.TypeAAAA, Class: class, Ttl: ttl},
				AAAA: a.WithZone("").AsSlice(),
			})
		}
	}
	return out
}

// step 推进探测 / 通告状态机，返回本次需要发送的报文类型
func (h *hostRecords) step(now time.Time) (probe, announce bool) {
	if h.state == hostEstablished || now.Before(h.nextAt) {
		return false, false
	}

	switch h.state {
	case hostProbing:
		if h.sent < probeCount {
			h.sent++
			h.nextAt = now.Add(probeInterval)
			return true, false
		}
		h.state = hostAnnouncing
		h.sent = 0
		fallthrough
	case hostAnnouncing:
		if h.sent >= h.announceCount {
			h.state = hostEstablished
			h.nextAt = time.Time{}
			return false, false
		}
		h.sent++
		h.nextAt = now.Add(h.announceInterval)
		return false, true
	}
	return false, false
}

// probeMessage 探测查询：ANY 问题 + 授权段中的候选记录
func (h *hostRecords) probeMessage(rrs []dns.RR) *dns.Msg {
	m := new(dns.Msg)
	m.Question = []dns.Question{{
		Name:   h.fqdn(),
		Qtype:  dns.TypeANY,
		Qclass: dns.ClassINET | qClassUnicastResponse,
	}}
	m.Ns = rrs
	return m
}

// sanitizeLabel 把系统主机名转换为合法的 DNS 标签
func sanitizeLabel(hostname string) string {
	if i := strings.IndexByte(hostname, '.'); i >= 0 {
		hostname = hostname[:i]
	}
	var sb strings.Builder
	for _, r := range hostname {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			sb.WriteRune(r)
		case r == ' ' || r == '_':
			sb.WriteByte('-')
		}
	}
	label := strings.Trim(sb.String(), "-")
	if len(label) > 63 {
		label = label[:63]
	}
	return label
}
