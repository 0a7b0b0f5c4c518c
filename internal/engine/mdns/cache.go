package mdns

import (
	"strings"
	"time"

	"github.com/miekg/dns"

	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
)

// classCacheFlush 记录类别中的 cache-flush 位
const classCacheFlush = 1 << 15

// ============================================================================
//                              记录缓存
// ============================================================================

// recordCache 在集成层分配的固定槽位上维护资源记录缓存
type recordCache struct {
	store *engineif.CacheStore
}

// put 写入一条收到的记录
//
//   - 带 cache-flush 位的记录清除同一网卡上同名同类型的其它记录
//   - TTL 为 0 的记录删除对应的已缓存记录
//   - 缓存已满时淘汰最早过期的槽位
func (c *recordCache) put(rr dns.RR, id engineif.InterfaceID, now time.Time) {
	if c.store == nil {
		return
	}

	hdr := rr.Header()
	flush := hdr.Class&classCacheFlush != 0
	rr = dns.Copy(rr)
	rr.Header().Class &^= classCacheFlush

	if hdr.Ttl == 0 {
		c.remove(rr, id)
		return
	}

	if flush {
		c.flush(rr, id, now)
	}

	expires := now.Add(time.Duration(hdr.Ttl) * time.Second)
	if slot := c.find(rr, id); slot != nil {
		slot.Record = rr
		slot.Received = now
		slot.Expires = expires
		return
	}

	slot := c.free()
	if slot == nil {
		slot = c.oldest()
		log.Debug("缓存已满，淘汰记录", "name", slot.Record.Header().Name)
	}
	*slot = engineif.CacheEntity{
		Record:      rr,
		InterfaceID: id,
		Received:    now,
		Expires:     expires,
		InUse:       true,
	}
}

// sweep 清除已过期的记录，返回清除数量
func (c *recordCache) sweep(now time.Time) int {
	if c.store == nil {
		return 0
	}
	n := 0
	for i := range c.store {
		slot := &c.store[i]
		if slot.InUse && !now.Before(slot.Expires) {
			*slot = engineif.CacheEntity{}
			n++
		}
	}
	return n
}

// lookup 返回指定名称和类型的未过期记录
func (c *recordCache) lookup(name string, rrtype uint16, now time.Time) []dns.RR {
	if c.store == nil {
		return nil
	}
	var out []dns.RR
	for i := range c.store {
		slot := &c.store[i]
		if !slot.InUse || !now.Before(slot.Expires) {
			continue
		}
		hdr := slot.Record.Header()
		if hdr.Rrtype == rrtype && strings.EqualFold(hdr.Name, name) {
			out = append(out, slot.Record)
		}
	}
	return out
}

// len 已占用槽位数量
func (c *recordCache) len() int {
	if c.store == nil {
		return 0
	}
	n := 0
	for i := range c.store {
		if c.store[i].InUse {
			n++
		}
	}
	return n
}

func (c *recordCache) find(rr dns.RR, id engineif.InterfaceID) *engineif.CacheEntity {
	for i := range c.store {
		slot := &c.store[i]
		if slot.InUse && slot.InterfaceID == id && dns.IsDuplicate(slot.Record, rr) {
			return slot
		}
	}
	return nil
}

func (c *recordCache) remove(rr dns.RR, id engineif.InterfaceID) {
	if slot := c.find(rr, id); slot != nil {
		*slot = engineif.CacheEntity{}
	}
}

// flush 清除同名同类型的其它记录；一秒内收到的记录保留（同一组应答中的多条记录）
func (c *recordCache) flush(rr dns.RR, id engineif.InterfaceID, now time.Time) {
	hdr := rr.Header()
	for i := range c.store {
		slot := &c.store[i]
		if !slot.InUse || slot.InterfaceID != id {
			continue
		}
		sh := slot.Record.Header()
		if sh.Rrtype != hdr.Rrtype || !strings.EqualFold(sh.Name, hdr.Name) {
			continue
		}
		if now.Sub(slot.Received) < time.Second || dns.IsDuplicate(slot.Record, rr) {
			continue
		}
		*slot = engineif.CacheEntity{}
	}
}

func (c *recordCache) free() *engineif.CacheEntity {
	for i := range c.store {
		if !c.store[i].InUse {
			return &c.store[i]
		}
	}
	return nil
}

func (c *recordCache) oldest() *engineif.CacheEntity {
	oldest := &c.store[0]
	for i := range c.store {
		if c.store[i].Expires.Before(oldest.Expires) {
			oldest = &c.store[i]
		}
	}
	return oldest
}
