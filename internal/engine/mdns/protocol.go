package mdns

import (
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bonjour/pkg/types"
)

// qClassUnicastResponse 问题类别中的 QU 位
const qClassUnicastResponse = 1 << 15

// legacyUnicastTTL 传统单播查询应答的 TTL 上限
const legacyUnicastTTL = 10

// outbound 一个待发送的报文
//
// dst 无效时表示在 iface 上组播。
type outbound struct {
	msg   *dns.Msg
	iface *netIface
	dst   netip.AddrPort
}

// ============================================================================
//                              周期性工作
// ============================================================================

// execute 执行到期工作：主机名探测 / 通告、缓存清理、NAT 结果
func (e *Engine) execute(now time.Time) {
	if !e.initialized {
		return
	}

	if probe, announce := e.host.step(now); probe {
		e.sendProbes()
	} else if announce {
		e.announce(e.host.ttl)
		if e.host.sent == 1 {
			e.logf(types.SeverityOperation, "host name %s announced", e.host.fqdn())
		}
	}

	if !now.Before(e.nextSweep) {
		if n := e.cache.sweep(now); n > 0 {
			log.Debug("清理过期缓存", "removed", n, "remaining", e.cache.len())
		}
		e.nextSweep = now.Add(e.cfg.CacheSweepInterval.Duration())
	}

	e.traversal.Execute(now)
}

// nextEvent 下一次需要执行 execute 的时间
func (e *Engine) nextEvent(now time.Time) time.Time {
	next := e.nextSweep
	earlier := func(at time.Time) {
		if !at.IsZero() && at.Before(next) {
			next = at
		}
	}
	if e.host.state != hostEstablished {
		earlier(e.host.nextAt)
	}
	earlier(e.traversal.NextEvent(now))
	return next
}

// untilNextEvent 距下一次事件的时长，不小于 0
func (e *Engine) untilNextEvent(now time.Time) time.Duration {
	return max(e.nextEvent(now).Sub(now), 0)
}

// ============================================================================
//                              报文处理
// ============================================================================

// handlePacket 处理一个收到的报文
func (e *Engine) handlePacket(pkt datagram, now time.Time) {
	var msg dns.Msg
	if err := msg.Unpack(pkt.data); err != nil {
		log.Debug("丢弃无法解析的报文", "src", pkt.src, "err", err)
		return
	}
	if msg.Opcode != dns.OpcodeQuery {
		return
	}

	n := e.interfaceFor(pkt)
	if n == nil {
		log.Debug("丢弃未知网卡上的报文", "src", pkt.src, "ifindex", pkt.ifIndex)
		return
	}

	if msg.Response {
		e.handleResponse(&msg, pkt, n, now)
		return
	}
	e.handleQuery(&msg, pkt, n)
}

// handleQuery 应答针对本机主机名的 A / AAAA / ANY 查询
func (e *Engine) handleQuery(query *dns.Msg, pkt datagram, n *netIface) {
	if !e.advertise || e.host.state == hostProbing {
		return
	}

	legacy := pkt.src.Port() != uint16(e.cfg.Port)
	var multicast, unicast []dns.RR

	for _, q := range query.Question {
		if !e.host.matches(q.Name) {
			continue
		}
		var v4, v6 bool
		switch q.Qtype {
		case dns.TypeA:
			v4 = true
		case dns.TypeAAAA:
			v6 = true
		case dns.TypeANY:
			v4, v6 = true, true
		default:
			continue
		}

		ttl := e.host.ttl
		if legacy {
			ttl = min(ttl, legacyUnicastTTL)
		}
		rrs := e.host.records(n, v4, v6, ttl, !legacy)
		rrs = suppressKnownAnswers(rrs, query.Answer)
		if len(rrs) == 0 {
			continue
		}

		if legacy || q.Qclass&qClassUnicastResponse != 0 {
			unicast = append(unicast, rrs...)
		} else {
			multicast = append(multicast, rrs...)
		}
	}

	if len(unicast) > 0 {
		resp := responseMessage(unicast)
		if legacy {
			resp.Id = query.Id
			resp.Question = query.Question
		}
		e.send(outbound{msg: resp, iface: n, dst: pkt.src})
	}
	if len(multicast) > 0 {
		e.send(outbound{msg: responseMessage(multicast), iface: n})
	}
}

// handleResponse 检测主机名冲突并缓存应答中的记录
func (e *Engine) handleResponse(resp *dns.Msg, pkt datagram, n *netIface, now time.Time) {
	fromSelf := e.isSelf(pkt.src.Addr())

	if e.advertise && !fromSelf && e.conflicts(resp) {
		old := e.host.fqdn()
		renamed := e.host.rename(now)
		e.logf(types.SeverityMsg, "Name conflict: %s is in use, renaming to %s", old, renamed)
		log.Warn("主机名冲突", "old", old, "new", renamed)
	}

	if fromSelf {
		return
	}
	for _, rr := range resp.Answer {
		e.cache.put(rr, n.id, now)
	}
	for _, rr := range resp.Extra {
		e.cache.put(rr, n.id, now)
	}
}

// conflicts 应答是否声明了本机主机名但地址不同
func (e *Engine) conflicts(resp *dns.Msg) bool {
	for _, rr := range resp.Answer {
		if !e.host.matches(rr.Header().Name) || rr.Header().Ttl == 0 {
			continue
		}
		var addr netip.Addr
		switch r := rr.(type) {
		case *dns.A:
			addr, _ = netip.AddrFromSlice(r.A.To4())
		case *dns.AAAA:
			addr, _ = netip.AddrFromSlice(r.AAAA.To16())
		default:
			continue
		}
		if addr.IsValid() && !e.isSelf(addr) {
			return true
		}
	}
	return false
}

// suppressKnownAnswers 去掉查询方已知且剩余 TTL 不少于一半的记录（RFC 6762 第 7.1 节）
func suppressKnownAnswers(rrs, known []dns.RR) []dns.RR {
	if len(known) == 0 {
		return rrs
	}
	out := rrs[:0]
	for _, rr := range rrs {
		suppressed := false
		for _, k := range known {
			if k.Header().Ttl >= rr.Header().Ttl/2 && sameRecord(rr, k) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			out = append(out, rr)
		}
	}
	return out
}

// sameRecord 忽略 cache-flush 位比较两条记录
func sameRecord(a, b dns.RR) bool {
	a = dns.Copy(a)
	b = dns.Copy(b)
	a.Header().Class &^= classCacheFlush
	b.Header().Class &^= classCacheFlush
	return dns.IsDuplicate(a, b)
}

// responseMessage 构造权威应答
func responseMessage(rrs []dns.RR) *dns.Msg {
	m := new(dns.Msg)
	m.Response = true
	m.Authoritative = true
	m.Compress = true
	m.Answer = rrs
	return m
}

// ============================================================================
//                              主机名探测与通告
// ============================================================================

// sendProbes 在每块网卡上发送探测
func (e *Engine) sendProbes() {
	for _, n := range e.ifaces {
		rrs := e.host.records(n, e.cfg.EnableIPv4, e.cfg.EnableIPv6, e.host.ttl, false)
		if len(rrs) == 0 {
			continue
		}
		e.send(outbound{msg: e.host.probeMessage(rrs), iface: n})
	}
}

// announce 在每块网卡上组播主机记录；ttl 为 0 时即告别报文
func (e *Engine) announce(ttl uint32) {
	for _, n := range e.ifaces {
		rrs := e.host.records(n, e.cfg.EnableIPv4, e.cfg.EnableIPv6, ttl, true)
		if len(rrs) == 0 {
			continue
		}
		e.send(outbound{msg: responseMessage(rrs), iface: n})
	}
}

// goodbye 撤销已通告的主机记录
func (e *Engine) goodbye() {
	if !e.advertise || e.host == nil || e.host.state == hostProbing {
		return
	}
	e.announce(0)
}

// ============================================================================
//                              发送
// ============================================================================

// transmit 通过套接字发送报文
func (e *Engine) transmit(out outbound) {
	b, err := out.msg.Pack()
	if err != nil {
		log.Debug("打包报文失败", "err", err)
		return
	}

	var errs error
	for _, s := range e.sockets {
		if out.dst.IsValid() {
			if s.is4() != out.dst.Addr().Is4() {
				continue
			}
			errs = multierr.Append(errs, s.sendUnicast(b, out.dst))
			continue
		}
		if (s.is4() && len(out.iface.v4) == 0) || (!s.is4() && len(out.iface.v6) == 0) {
			continue
		}
		errs = multierr.Append(errs, s.sendMulticast(b, out.iface))
	}
	if errs != nil {
		log.Debug("发送报文失败", "iface", out.iface.ifi.Name, "err", errs)
	}
}
