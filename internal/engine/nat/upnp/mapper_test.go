package upnp

import (
	"context"
	"errors"
	"net/netip"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	natif "github.com/dep2p/go-bonjour/pkg/interfaces/nat"
)

// fakeIGD IGD 客户端替身
type fakeIGD struct {
	external string
	err      error
	adds     []addRequest
	deletes  []uint16
}

type addRequest struct {
	external       uint16
	protocol       string
	internal       uint16
	internalClient string
	description    string
	lease          uint32
}

func (f *fakeIGD) GetExternalIPAddressCtx(context.Context) (string, error) {
	return f.external, f.err
}

func (f *fakeIGD) AddPortMappingCtx(_ context.Context, _ string, externalPort uint16, protocol string,
	internalPort uint16, internalClient string, _ bool, description string, lease uint32) error {
	if f.err != nil {
		return f.err
	}
	f.adds = append(f.adds, addRequest{externalPort, protocol, internalPort, internalClient, description, lease})
	return nil
}

func (f *fakeIGD) DeletePortMappingCtx(_ context.Context, _ string, externalPort uint16, _ string) error {
	f.deletes = append(f.deletes, externalPort)
	return f.err
}

func newTestMapper(igd *fakeIGD) (*Mapper, *int) {
	discoveries := 0
	m := NewMapper(WithDescription("test"))
	m.discover = func(context.Context) (gatewayDevice, error) {
		discoveries++
		loc, _ := url.Parse("http://127.0.0.1:5000/rootDesc.xml")
		return gatewayDevice{client: igd, location: loc, kind: "fake"}, nil
	}
	return m, &discoveries
}

func TestMapper_ExternalAddress(t *testing.T) {
	igd := &fakeIGD{external: " 203.0.113.9 "}
	m, discoveries := newTestMapper(igd)

	addr, err := m.ExternalAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.9"), addr)

	_, err = m.ExternalAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, *discoveries)

	igd.external = "not-an-ip"
	_, err = m.ExternalAddress(context.Background())
	assert.ErrorIs(t, err, natif.ErrUnsupported)
}

func TestMapper_AddMapping(t *testing.T) {
	igd := &fakeIGD{}
	m, _ := newTestMapper(igd)

	mapping, err := m.AddMapping(context.Background(), "udp", 8080, 9090, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, natif.Mapping{
		Protocol:     "udp",
		InternalPort: 8080,
		ExternalPort: 9090,
		Lifetime:     30 * time.Minute,
	}, mapping)

	t.Run("外部端口为 0 时使用内部端口", func(t *testing.T) {
		mapping, err := m.AddMapping(context.Background(), "tcp", 22, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, uint16(22), mapping.ExternalPort)
		assert.Equal(t, time.Duration(defaultLease)*time.Second, mapping.Lifetime)
	})

	require.Len(t, igd.adds, 2)
	first := igd.adds[0]
	assert.Equal(t, "UDP", first.protocol)
	assert.Equal(t, uint16(9090), first.external)
	assert.Equal(t, uint16(8080), first.internal)
	assert.Equal(t, "127.0.0.1", first.internalClient)
	assert.Equal(t, "test", first.description)
	assert.Equal(t, uint32(1800), first.lease)
	assert.Equal(t, "TCP", igd.adds[1].protocol)
}

func TestMapper_Errors(t *testing.T) {
	t.Run("映射被拒绝", func(t *testing.T) {
		m, _ := newTestMapper(&fakeIGD{err: errors.New("718 ConflictInMappingEntry")})
		_, err := m.AddMapping(context.Background(), "udp", 8080, 0, time.Hour)
		assert.ErrorIs(t, err, natif.ErrMappingFailed)
	})

	t.Run("未发现网关", func(t *testing.T) {
		m := NewMapper()
		m.discover = func(context.Context) (gatewayDevice, error) {
			return gatewayDevice{}, natif.ErrNoGateway
		}
		_, err := m.ExternalAddress(context.Background())
		assert.ErrorIs(t, err, natif.ErrNoGateway)
	})

	t.Run("网关位置无地址", func(t *testing.T) {
		m := NewMapper()
		m.discover = func(context.Context) (gatewayDevice, error) {
			loc, _ := url.Parse("http://router.lan/rootDesc.xml")
			return gatewayDevice{client: &fakeIGD{}, location: loc}, nil
		}
		_, err := m.AddMapping(context.Background(), "udp", 1, 0, time.Hour)
		assert.ErrorIs(t, err, natif.ErrNoGateway)
	})

	t.Run("关闭后拒绝请求", func(t *testing.T) {
		m, _ := newTestMapper(&fakeIGD{})
		require.NoError(t, m.Close())
		_, err := m.ExternalAddress(context.Background())
		assert.ErrorIs(t, err, natif.ErrMapperClosed)
	})
}

func TestMapper_DeleteMapping(t *testing.T) {
	igd := &fakeIGD{}
	m, _ := newTestMapper(igd)

	require.NoError(t, m.DeleteMapping(context.Background(), "udp", 8080, 9090))
	assert.Empty(t, igd.deletes, "尚未发现网关时无需删除")

	_, err := m.AddMapping(context.Background(), "udp", 8080, 9090, time.Hour)
	require.NoError(t, err)
	require.NoError(t, m.DeleteMapping(context.Background(), "udp", 8080, 9090))
	assert.Equal(t, []uint16{9090}, igd.deletes)
}
