package nat

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-bonjour/config"
	"github.com/dep2p/go-bonjour/internal/engine/nat/natpmp"
	"github.com/dep2p/go-bonjour/internal/engine/nat/upnp"
	natif "github.com/dep2p/go-bonjour/pkg/interfaces/nat"
)

// ============================================================================
//                              后端选择
// ============================================================================

// NewMapper 根据配置创建映射器
//
// backend 为 none 时返回 (nil, nil)，调度器会把所有请求报告为无路由器。
func NewMapper(cfg config.NATConfig) (natif.Mapper, error) {
	var gw netip.Addr
	if cfg.Gateway != "" {
		addr, err := netip.ParseAddr(cfg.Gateway)
		if err != nil {
			return nil, fmt.Errorf("nat: invalid gateway %q: %w", cfg.Gateway, err)
		}
		gw = addr
	}

	newPMP := func() natif.Mapper {
		opts := []natpmp.Option{natpmp.WithTimeout(cfg.RequestTimeout.Duration())}
		if gw.IsValid() {
			opts = append(opts, natpmp.WithGateway(gw))
		}
		return natpmp.NewMapper(opts...)
	}

	switch cfg.Backend {
	case config.NATBackendNone:
		return nil, nil
	case config.NATBackendNATPMP:
		return newPMP(), nil
	case config.NATBackendUPnP:
		return upnp.NewMapper(), nil
	case config.NATBackendAuto, "":
		return newFallbackMapper(newPMP(), upnp.NewMapper()), nil
	default:
		return nil, fmt.Errorf("nat: unknown backend %q", cfg.Backend)
	}
}

// ============================================================================
//                              fallbackMapper
// ============================================================================

// fallbackMapper 依次尝试多个映射器，第一个成功的映射器被固定使用
type fallbackMapper struct {
	mu      sync.Mutex
	mappers []natif.Mapper
	active  natif.Mapper
}

var _ natif.Mapper = (*fallbackMapper)(nil)

func newFallbackMapper(mappers ...natif.Mapper) *fallbackMapper {
	return &fallbackMapper{mappers: mappers}
}

// Name 返回当前使用的映射器名称
func (m *fallbackMapper) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return m.active.Name()
	}
	return "auto"
}

// candidates 返回本次需要尝试的映射器
func (m *fallbackMapper) candidates() []natif.Mapper {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return []natif.Mapper{m.active}
	}
	return m.mappers
}

func (m *fallbackMapper) pin(mapper natif.Mapper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		m.active = mapper
		log.Info("选定 NAT 映射后端", "backend", mapper.Name())
	}
}

// ExternalAddress 获取公网地址
func (m *fallbackMapper) ExternalAddress(ctx context.Context) (netip.Addr, error) {
	var errs error
	for _, mapper := range m.candidates() {
		addr, err := mapper.ExternalAddress(ctx)
		if err == nil {
			m.pin(mapper)
			return addr, nil
		}
		errs = multierr.Append(errs, err)
		if errors.Is(err, natif.ErrMapperClosed) || ctx.Err() != nil {
			break
		}
	}
	return netip.Addr{}, errs
}

// AddMapping 请求映射
func (m *fallbackMapper) AddMapping(ctx context.Context, protocol string, internalPort, requestedPort uint16, lease time.Duration) (natif.Mapping, error) {
	var errs error
	for _, mapper := range m.candidates() {
		mapping, err := mapper.AddMapping(ctx, protocol, internalPort, requestedPort, lease)
		if err == nil {
			m.pin(mapper)
			return mapping, nil
		}
		errs = multierr.Append(errs, err)
		if errors.Is(err, natif.ErrMapperClosed) || ctx.Err() != nil {
			break
		}
	}
	return natif.Mapping{}, errs
}

// DeleteMapping 删除映射
func (m *fallbackMapper) DeleteMapping(ctx context.Context, protocol string, internalPort, externalPort uint16) error {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active == nil {
		return nil
	}
	return active.DeleteMapping(ctx, protocol, internalPort, externalPort)
}

// Close 关闭所有映射器
func (m *fallbackMapper) Close() error {
	var errs error
	for _, mapper := range m.mappers {
		errs = multierr.Append(errs, mapper.Close())
	}
	return errs
}
