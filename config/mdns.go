package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MDNSConfig mDNS 引擎配置
type MDNSConfig struct {
	// Hostname 主机名（不含 .local），为空时使用系统主机名
	Hostname string `json:"hostname" yaml:"hostname"`

	// Domain 本地域
	Domain string `json:"domain" yaml:"domain"`

	// Port mDNS 端口，测试时可改为其它端口
	Port int `json:"port" yaml:"port"`

	// EnableIPv4 是否在 IPv4 上运行
	EnableIPv4 bool `json:"enable_ipv4" yaml:"enable_ipv4"`

	// EnableIPv6 是否在 IPv6 上运行
	EnableIPv6 bool `json:"enable_ipv6" yaml:"enable_ipv6"`

	// Interfaces 网卡白名单，为空表示所有支持组播的网卡
	Interfaces []string `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`

	// HostTTL 主机地址记录 TTL（秒）
	HostTTL uint32 `json:"host_ttl" yaml:"host_ttl"`

	// AnnounceCount 启动时的通告次数
	AnnounceCount int `json:"announce_count" yaml:"announce_count"`

	// AnnounceInterval 通告间隔
	AnnounceInterval Duration `json:"announce_interval" yaml:"announce_interval"`

	// CacheSweepInterval 过期缓存清理间隔
	CacheSweepInterval Duration `json:"cache_sweep_interval" yaml:"cache_sweep_interval"`
}

// DefaultMDNSConfig 默认 mDNS 配置
func DefaultMDNSConfig() MDNSConfig {
	return MDNSConfig{
		Domain:             "local",
		Port:               5353,
		EnableIPv4:         true,
		EnableIPv6:         false,
		HostTTL:            120,
		AnnounceCount:      2,
		AnnounceInterval:   Duration(time.Second),
		CacheSweepInterval: Duration(10 * time.Second),
	}
}

// Validate 验证 mDNS 配置
func (c MDNSConfig) Validate() error {
	if strings.ContainsAny(c.Hostname, ". ") {
		return fmt.Errorf("mdns hostname %q must be a single label", c.Hostname)
	}
	if c.Domain == "" {
		return errors.New("mdns domain must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("mdns port %d out of range", c.Port)
	}
	if !c.EnableIPv4 && !c.EnableIPv6 {
		return errors.New("mdns requires at least one of IPv4 or IPv6")
	}
	if c.HostTTL == 0 {
		return errors.New("mdns host TTL must be positive")
	}
	if c.AnnounceCount < 0 {
		return errors.New("mdns announce count must not be negative")
	}
	if c.AnnounceCount > 0 && c.AnnounceInterval <= 0 {
		return errors.New("mdns announce interval must be positive")
	}
	if c.CacheSweepInterval <= 0 {
		return errors.New("mdns cache sweep interval must be positive")
	}
	return nil
}
