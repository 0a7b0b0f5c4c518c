package config

import (
	"errors"
	"fmt"
	"time"
)

// NAT 端口映射后端
const (
	NATBackendAuto   = "auto"
	NATBackendNATPMP = "natpmp"
	NATBackendUPnP   = "upnp"
	NATBackendNone   = "none"
)

// NATConfig NAT 穿透配置
//
// 配置引擎 NAT 子系统使用的网关协议：
//   - NAT-PMP: 向默认网关请求映射
//   - UPnP: 通用即插即用 IGD 端口映射
//   - auto: 先尝试 NAT-PMP，失败再尝试 UPnP
type NATConfig struct {
	// Backend 映射后端：auto / natpmp / upnp / none
	Backend string `json:"backend" yaml:"backend"`

	// Gateway 指定网关地址，为空时自动发现
	Gateway string `json:"gateway,omitempty" yaml:"gateway,omitempty"`

	// RequestTimeout 单次网关请求超时
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`

	// DefaultLease 请求未指定租期时使用的租期
	DefaultLease Duration `json:"default_lease" yaml:"default_lease"`

	// AddressRefresh 公网地址请求的刷新间隔
	AddressRefresh Duration `json:"address_refresh" yaml:"address_refresh"`

	// RetryInterval 失败后的重试间隔
	RetryInterval Duration `json:"retry_interval" yaml:"retry_interval"`

	// RequestRate 每秒最多发往网关的请求数
	RequestRate float64 `json:"request_rate" yaml:"request_rate"`

	// RequestBurst 请求突发上限
	RequestBurst int `json:"request_burst" yaml:"request_burst"`
}

// DefaultNATConfig 默认 NAT 配置
func DefaultNATConfig() NATConfig {
	return NATConfig{
		Backend:        NATBackendAuto,
		RequestTimeout: Duration(3 * time.Second),
		DefaultLease:   Duration(2 * time.Hour),
		AddressRefresh: Duration(5 * time.Minute),
		RetryInterval:  Duration(30 * time.Second),
		RequestRate:    4,
		RequestBurst:   4,
	}
}

// Enabled 是否启用 NAT 子系统
func (c NATConfig) Enabled() bool {
	return c.Backend != NATBackendNone
}

// Validate 验证 NAT 配置
func (c NATConfig) Validate() error {
	switch c.Backend {
	case NATBackendAuto, NATBackendNATPMP, NATBackendUPnP, NATBackendNone:
	default:
		return fmt.Errorf("unknown NAT backend %q", c.Backend)
	}
	if !c.Enabled() {
		return nil
	}
	if c.RequestTimeout <= 0 {
		return errors.New("NAT request timeout must be positive")
	}
	if c.DefaultLease < Duration(time.Second) {
		return errors.New("NAT default lease must be at least 1s")
	}
	if c.AddressRefresh <= 0 {
		return errors.New("NAT address refresh interval must be positive")
	}
	if c.RetryInterval <= 0 {
		return errors.New("NAT retry interval must be positive")
	}
	if c.RequestRate <= 0 {
		return errors.New("NAT request rate must be positive")
	}
	if c.RequestBurst <= 0 {
		return errors.New("NAT request burst must be positive")
	}
	return nil
}
