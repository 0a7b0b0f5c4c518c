package addrutil

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIP(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"192.168.1.10:5353", "192.168.1.10"},
		{"[::1]:5353", "::1"},
		{"10.0.0.1", "10.0.0.1"},
		{"::ffff:10.0.0.1", "10.0.0.1"},
	}
	for _, c := range cases {
		assert.Equal(t, netip.MustParseAddr(c.want), ExtractIP(c.in), c.in)
	}

	assert.False(t, ExtractIP("").IsValid())
	assert.False(t, ExtractIP("printer.local:80").IsValid())
}

func TestAddrType(t *testing.T) {
	assert.Equal(t, "loopback", AddrType(netip.MustParseAddr("127.0.0.1")))
	assert.Equal(t, "private", AddrType(netip.MustParseAddr("192.168.0.2")))
	assert.Equal(t, "private", AddrType(netip.MustParseAddr("fe80::1")))
	assert.Equal(t, "private", AddrType(netip.MustParseAddr("169.254.3.4")))
	assert.Equal(t, "public", AddrType(netip.MustParseAddr("203.0.113.7")))
	assert.Equal(t, "unknown", AddrType(netip.Addr{}))
	assert.Equal(t, "unknown", AddrType(netip.MustParseAddr("224.0.0.251")))
}

func TestFromNetIP(t *testing.T) {
	assert.Equal(t, netip.MustParseAddr("10.1.2.3"), FromNetIP(net.ParseIP("10.1.2.3")))
	assert.False(t, FromNetIP(nil).IsValid())
}

func TestSourceAddrForDest(t *testing.T) {
	t.Run("回环目的地址", func(t *testing.T) {
		src, err := SourceAddrForDest(netip.MustParseAddr("127.0.0.1"))
		require.NoError(t, err)
		assert.True(t, src.IsLoopback())
	})

	t.Run("无效地址", func(t *testing.T) {
		_, err := SourceAddrForDest(netip.Addr{})
		assert.ErrorIs(t, err, ErrNoSourceAddr)
	})
}

func TestInterfaceAddrs_Loopback(t *testing.T) {
	ifaces, err := net.Interfaces()
	require.NoError(t, err)

	for i := range ifaces {
		if ifaces[i].Flags&net.FlagLoopback == 0 {
			continue
		}
		v4, _ := InterfaceAddrs(&ifaces[i])
		for _, a := range v4 {
			assert.True(t, a.Is4())
		}
		return
	}
	t.Skip("no loopback interface")
}
