package mdns

import (
	"net"
	"net/netip"
	"slices"

	"github.com/dep2p/go-bonjour/internal/util/addrutil"
	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
)

// netIface 引擎使用的一块网卡
type netIface struct {
	id  engineif.InterfaceID
	ifi net.Interface
	v4  []netip.Addr
	v6  []netip.Addr
}

// index 网卡序号
func (n *netIface) index() int {
	return n.ifi.Index
}

// owns 地址是否属于该网卡
func (n *netIface) owns(addr netip.Addr) bool {
	addr = addr.WithZone("")
	for _, a := range n.v4 {
		if a == addr {
			return true
		}
	}
	for _, a := range n.v6 {
		if a.WithZone("") == addr {
			return true
		}
	}
	return false
}

// listInterfaces 列出可用于 mDNS 的网卡
//
// allow 为空时选择所有已启用、支持组播且非回环的网卡；
// 否则只选择名称在白名单中的网卡（回环网卡也可以显式选择）。
func listInterfaces(allow []string) ([]*netIface, error) {
	ifis, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []*netIface
	for _, ifi := range ifis {
		if ifi.Flags&net.FlagUp == 0 {
			continue
		}
		if len(allow) > 0 {
			if !slices.Contains(allow, ifi.Name) {
				continue
			}
		} else if ifi.Flags&net.FlagMulticast == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}

		v4, v6 := addrutil.InterfaceAddrs(&ifi)
		if len(v4) == 0 && len(v6) == 0 {
			continue
		}
		out = append(out, &netIface{
			id:  engineif.InterfaceID(ifi.Index),
			ifi: ifi,
			v4:  v4,
			v6:  v6,
		})
	}
	return out, nil
}
