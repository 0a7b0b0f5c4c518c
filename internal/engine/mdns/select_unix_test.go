//go:build linux || darwin

package mdns

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/dep2p/go-bonjour/config"
)

// exhaustLowFDs 打开足够多的文件，使之后新建的描述符不小于 1024
func exhaustLowFDs(t *testing.T, n int) {
	t.Helper()
	var lim unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_NOFILE, &lim))
	if lim.Cur < uint64(n+256) {
		want := lim
		want.Cur = min(uint64(n+256), lim.Max)
		if want.Cur < uint64(n+64) || unix.Setrlimit(unix.RLIMIT_NOFILE, &want) != nil {
			t.Skipf("文件描述符上限不足: cur=%d max=%d", lim.Cur, lim.Max)
		}
		t.Cleanup(func() { _ = unix.Setrlimit(unix.RLIMIT_NOFILE, &lim) })
	}

	files := make([]*os.File, 0, n)
	t.Cleanup(func() {
		for _, f := range files {
			_ = f.Close()
		}
	})
	for i := 0; i < n; i++ {
		f, err := os.Open(os.DevNull)
		require.NoError(t, err)
		files = append(files, f)
	}
}

func TestEngine_ReadySetHighFD(t *testing.T) {
	exhaustLowFDs(t, 1100)

	s, err := openSocket("udp4", 0, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, s.fd, 1024)

	te := newTestEngine(t)
	te.openSockets = func(config.MDNSConfig, []*netIface) ([]*socket, error) {
		return []*socket{s}, nil
	}
	te.init(t)
	te.establish()

	var fds []unix.PollFd
	timeout := time.Second
	require.NotPanics(t, func() { te.BuildReadySet(&fds, &timeout) })
	assert.Contains(t, fds, unix.PollFd{Fd: int32(s.fd), Events: unix.POLLIN})

	t.Run("就绪后分发", func(t *testing.T) {
		conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: s.conn.LocalAddr().(*net.UDPAddr).Port})
		require.NoError(t, err)
		defer conn.Close()

		msg := new(dns.Msg)
		msg.Response = true
		msg.Answer = []dns.RR{aRecord("peer.local.", peerAddr, 120)}
		b, err := msg.Pack()
		require.NoError(t, err)
		_, err = conn.Write(b)
		require.NoError(t, err)

		n, err := unix.Poll(fds, 1000)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		require.NotPanics(t, func() { te.DispatchReadySet(fds) })

		// 报文已被读走
		_, err = s.readReady(make([]byte, maxPacketSize))
		assert.ErrorIs(t, err, errWouldBlock)
	})
}

func TestSocket_ReadReadyDoesNotBlock(t *testing.T) {
	s, err := openSocket("udp4", 0, nil)
	require.NoError(t, err)
	defer s.Close()

	buf := make([]byte, maxPacketSize)
	start := time.Now()
	_, err = s.readReady(buf)
	assert.ErrorIs(t, err, errWouldBlock)
	assert.Less(t, time.Since(start), 5*time.Millisecond)

	t.Run("读取来源与数据", func(t *testing.T) {
		conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: s.conn.LocalAddr().(*net.UDPAddr).Port})
		require.NoError(t, err)
		defer conn.Close()
		_, err = conn.Write([]byte("hello"))
		require.NoError(t, err)

		fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
		_, err = unix.Poll(fds, 1000)
		require.NoError(t, err)

		pkt, err := s.readReady(buf)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), pkt.data)
		assert.Equal(t, conn.LocalAddr().(*net.UDPAddr).AddrPort().Port(), pkt.src.Port())
		assert.True(t, pkt.src.Addr().IsLoopback())
	})
}
