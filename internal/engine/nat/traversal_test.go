package nat

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bonjour/config"
	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
	natif "github.com/dep2p/go-bonjour/pkg/interfaces/nat"
	"github.com/dep2p/go-bonjour/pkg/types"
)

// ============================================================================
//                              测试替身
// ============================================================================

type addCall struct {
	protocol  string
	internal  uint16
	requested uint16
	lease     time.Duration
}

// fakeMapper 可控的映射器替身
type fakeMapper struct {
	mu       sync.Mutex
	name     string
	addr     netip.Addr
	err      error
	block    chan struct{}
	external uint16
	adds     []addCall
	deletes  []natif.Mapping
	closed   int
}

func newFakeMapper() *fakeMapper {
	return &fakeMapper{
		name:     "fake",
		addr:     netip.MustParseAddr("203.0.113.5"),
		external: 40000,
	}
}

func (f *fakeMapper) Name() string { return f.name }

func (f *fakeMapper) ExternalAddress(ctx context.Context) (netip.Addr, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return netip.Addr{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return netip.Addr{}, f.err
	}
	return f.addr, nil
}

func (f *fakeMapper) AddMapping(_ context.Context, protocol string, internal, requested uint16, lease time.Duration) (natif.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, addCall{protocol, internal, requested, lease})
	if f.err != nil {
		return natif.Mapping{}, f.err
	}
	ext := requested
	if ext == 0 {
		ext = f.external
	}
	return natif.Mapping{Protocol: protocol, InternalPort: internal, ExternalPort: ext, Lifetime: lease}, nil
}

func (f *fakeMapper) DeleteMapping(_ context.Context, protocol string, internal, external uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, natif.Mapping{Protocol: protocol, InternalPort: internal, ExternalPort: external})
	return nil
}

func (f *fakeMapper) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeMapper) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeMapper) setAddr(addr netip.Addr) {
	f.mu.Lock()
	f.addr = addr
	f.mu.Unlock()
}

func (f *fakeMapper) addCalls() []addCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]addCall(nil), f.adds...)
}

func (f *fakeMapper) deleted() []natif.Mapping {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]natif.Mapping(nil), f.deletes...)
}

func testConfig() config.NATConfig {
	cfg := config.DefaultNATConfig()
	cfg.RequestRate = 1000
	cfg.RequestBurst = 100
	return cfg
}

// callbacks 记录回调
type callbacks struct {
	results []engineif.NATTraversalInfo
}

func (c *callbacks) info(op engineif.NATOp, internal, requested uint16, lease uint32) *engineif.NATTraversalInfo {
	return &engineif.NATTraversalInfo{
		Protocol:      op,
		IntPort:       types.NewIPPort(internal),
		RequestedPort: types.NewIPPort(requested),
		NATLease:      lease,
		ClientCallback: func(info *engineif.NATTraversalInfo) {
			c.results = append(c.results, *info)
		},
	}
}

func (c *callbacks) last(t *testing.T) engineif.NATTraversalInfo {
	t.Helper()
	require.NotEmpty(t, c.results)
	return c.results[len(c.results)-1]
}

func waitReady(t *testing.T, tr *Traversal) {
	t.Helper()
	select {
	case <-tr.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("等待 NAT 结果超时")
	}
}

// ============================================================================
//                              映射与续约
// ============================================================================

func TestTraversal_MapAndRenew(t *testing.T) {
	fm := newFakeMapper()
	tr := NewTraversal(fm, testConfig())
	defer tr.Close()

	var cb callbacks
	info := cb.info(engineif.NATOpMapUDP, 8080, 9090, 3600)
	require.NoError(t, tr.Start(info))
	assert.Equal(t, 1, tr.Len())

	now := time.Now()
	waitReady(t, tr)
	tr.Execute(now)

	require.Len(t, cb.results, 1)
	got := cb.last(t)
	assert.Equal(t, types.CodeNoError, got.Result)
	assert.Equal(t, netip.MustParseAddr("203.0.113.5"), got.ExternalAddress)
	assert.Equal(t, uint16(9090), got.ExternalPort.Host())
	assert.Equal(t, uint32(3600), got.Lifetime)
	assert.Equal(t, now.Add(30*time.Minute), tr.NextEvent(now), "租期过半续约")

	t.Run("未到期不派发", func(t *testing.T) {
		tr.Execute(now.Add(time.Minute))
		assert.Len(t, fm.addCalls(), 1)
	})

	t.Run("租期过半续约", func(t *testing.T) {
		renewAt := now.Add(30 * time.Minute)
		tr.Execute(renewAt)
		waitReady(t, tr)
		tr.Execute(renewAt)

		calls := fm.addCalls()
		require.Len(t, calls, 2)
		assert.Equal(t, addCall{"udp", 8080, 9090, time.Hour}, calls[1])
		assert.Len(t, cb.results, 2)
	})
}

func TestTraversal_RenewalFailureExpires(t *testing.T) {
	fm := newFakeMapper()
	tr := NewTraversal(fm, testConfig())
	defer tr.Close()

	var cb callbacks
	info := cb.info(engineif.NATOpMapTCP, 22, 0, 120)
	require.NoError(t, tr.Start(info))

	now := time.Now()
	waitReady(t, tr)
	tr.Execute(now)
	require.Len(t, cb.results, 1)
	assert.Equal(t, uint16(40000), cb.last(t).ExternalPort.Host())

	// 续约失败：映射仍有效时不回调
	fm.setErr(errors.New("gateway rebooted"))
	renewAt := now.Add(time.Minute)
	tr.Execute(renewAt)
	waitReady(t, tr)
	tr.Execute(renewAt)
	assert.Len(t, cb.results, 1)

	// 到期后报告
	tr.Execute(now.Add(2 * time.Minute))
	require.Len(t, cb.results, 2)
	got := cb.last(t)
	assert.Equal(t, types.CodeNATTraversal, got.Result)
	assert.Zero(t, got.Lifetime)
	assert.True(t, got.ExternalPort.IsZero())
}

func TestTraversal_Failure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"无网关", natif.ErrNoGateway, types.CodeNoRouter},
		{"不支持", fmt.Errorf("wrap: %w", natif.ErrUnsupported), types.CodeNATPortMappingUnsupported},
		{"映射被拒绝", natif.ErrMappingFailed, types.CodeNATTraversal},
		{"超时", context.DeadlineExceeded, types.CodeTimeout},
		{"状态码透传", fmt.Errorf("gateway: %w", types.CodeDoubleNAT), types.CodeDoubleNAT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultCode(tt.err))
		})
	}

	t.Run("失败结果回调一次", func(t *testing.T) {
		fm := newFakeMapper()
		fm.setErr(natif.ErrNoGateway)
		tr := NewTraversal(fm, testConfig())
		defer tr.Close()

		var cb callbacks
		require.NoError(t, tr.Start(cb.info(engineif.NATOpMapUDP, 8080, 0, 60)))

		now := time.Now()
		waitReady(t, tr)
		tr.Execute(now)
		require.Len(t, cb.results, 1)
		assert.Equal(t, types.CodeNoRouter, cb.last(t).Result)

		// 重试仍然失败，状态未变不重复回调
		retryAt := now.Add(testConfig().RetryInterval.Duration())
		tr.Execute(retryAt)
		waitReady(t, tr)
		tr.Execute(retryAt)
		assert.Len(t, cb.results, 1)
	})
}

func TestTraversal_NoMapper(t *testing.T) {
	tr := NewTraversal(nil, testConfig())
	defer tr.Close()

	var cb callbacks
	require.NoError(t, tr.Start(cb.info(engineif.NATOpAddrRequest, 0, 0, 0)))
	assert.Equal(t, time.Unix(10, 0), tr.NextEvent(time.Unix(10, 0)))

	waitReady(t, tr)
	tr.Execute(time.Now())
	require.Len(t, cb.results, 1)
	assert.Equal(t, types.CodeNoRouter, cb.last(t).Result)
}

// ============================================================================
//                              公网地址请求
// ============================================================================

func TestTraversal_AddressRequest(t *testing.T) {
	fm := newFakeMapper()
	cfg := testConfig()
	tr := NewTraversal(fm, cfg)
	defer tr.Close()

	var cb callbacks
	require.NoError(t, tr.Start(cb.info(engineif.NATOpAddrRequest, 0, 0, 0)))

	now := time.Now()
	waitReady(t, tr)
	tr.Execute(now)
	require.Len(t, cb.results, 1)
	assert.Equal(t, types.CodeNoError, cb.last(t).Result)
	assert.Equal(t, netip.MustParseAddr("203.0.113.5"), cb.last(t).ExternalAddress)
	assert.Zero(t, cb.last(t).Lifetime)
	assert.Empty(t, fm.addCalls(), "地址请求不创建映射")

	refresh := cfg.AddressRefresh.Duration()

	t.Run("地址不变不回调", func(t *testing.T) {
		at := now.Add(refresh)
		tr.Execute(at)
		waitReady(t, tr)
		tr.Execute(at)
		assert.Len(t, cb.results, 1)
	})

	t.Run("地址变化时回调", func(t *testing.T) {
		fm.setAddr(netip.MustParseAddr("198.51.100.1"))
		at := now.Add(2 * refresh)
		tr.Execute(at)
		waitReady(t, tr)
		tr.Execute(at)
		require.Len(t, cb.results, 2)
		assert.Equal(t, netip.MustParseAddr("198.51.100.1"), cb.last(t).ExternalAddress)
	})
}

// ============================================================================
//                              注销与关闭
// ============================================================================

func TestTraversal_StopDropsInflightResult(t *testing.T) {
	fm := newFakeMapper()
	fm.block = make(chan struct{})
	tr := NewTraversal(fm, testConfig())
	defer tr.Close()

	var cb callbacks
	info := cb.info(engineif.NATOpMapUDP, 8080, 0, 60)
	require.NoError(t, tr.Start(info))
	require.NoError(t, tr.Stop(info))
	assert.Zero(t, tr.Len())

	close(fm.block)
	waitReady(t, tr)
	tr.Execute(time.Now())
	assert.Empty(t, cb.results)

	assert.ErrorIs(t, tr.Stop(info), types.ErrBadReference)
}

func TestTraversal_StopInCallback(t *testing.T) {
	fm := newFakeMapper()
	tr := NewTraversal(fm, testConfig())

	calls := 0
	info := &engineif.NATTraversalInfo{
		Protocol: engineif.NATOpMapUDP,
		IntPort:  types.NewIPPort(5353),
		NATLease: 60,
	}
	info.ClientCallback = func(info *engineif.NATTraversalInfo) {
		calls++
		assert.NoError(t, tr.Stop(info))
	}
	require.NoError(t, tr.Start(info))

	waitReady(t, tr)
	tr.Execute(time.Now())
	assert.Equal(t, 1, calls)
	assert.Zero(t, tr.Len())

	// Close 等待后台删除完成
	require.NoError(t, tr.Close())
	assert.Equal(t, []natif.Mapping{{Protocol: "udp", InternalPort: 5353, ExternalPort: 40000}}, fm.deleted())
}

func TestTraversal_Registration(t *testing.T) {
	tr := NewTraversal(newFakeMapper(), testConfig())

	var cb callbacks
	info := cb.info(engineif.NATOpMapUDP, 1, 0, 60)
	require.NoError(t, tr.Start(info))
	assert.ErrorIs(t, tr.Start(info), types.ErrAlreadyRegistered)
	assert.ErrorIs(t, tr.Start(nil), types.ErrBadParam)

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Start(cb.info(engineif.NATOpMapUDP, 2, 0, 60)), types.ErrBadState)
	assert.NoError(t, tr.Close(), "重复关闭无副作用")
}

func TestTraversal_CloseDeletesGrantedMappings(t *testing.T) {
	fm := newFakeMapper()
	tr := NewTraversal(fm, testConfig())

	var cb callbacks
	require.NoError(t, tr.Start(cb.info(engineif.NATOpMapTCP, 80, 8080, 600)))
	waitReady(t, tr)
	tr.Execute(time.Now())
	require.Len(t, cb.results, 1)

	require.NoError(t, tr.Close())
	assert.Equal(t, []natif.Mapping{{Protocol: "tcp", InternalPort: 80, ExternalPort: 8080}}, fm.deleted())
	assert.Equal(t, 1, fm.closed)
	assert.Zero(t, tr.Len())

	// 关闭后不再执行
	tr.Execute(time.Now().Add(time.Hour))
	assert.Len(t, cb.results, 1)
}
