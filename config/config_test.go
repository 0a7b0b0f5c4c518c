package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 测试默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DriverAuto, cfg.Responder.Driver)
	assert.Equal(t, 5353, cfg.MDNS.Port)
	assert.Equal(t, "local", cfg.MDNS.Domain)
	assert.True(t, cfg.MDNS.EnableIPv4)
	assert.Equal(t, NATBackendAuto, cfg.NAT.Backend)
	assert.True(t, cfg.NAT.Enabled())
	assert.False(t, cfg.Metrics.Enabled)
}

// TestDurations 测试时间配置
func TestDurations(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 10*time.Millisecond, cfg.Responder.ProcessInterval.Duration())
	assert.Equal(t, time.Second, cfg.MDNS.AnnounceInterval.Duration())
	assert.Equal(t, 2*time.Hour, cfg.NAT.DefaultLease.Duration())
}

func TestValidate(t *testing.T) {
	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"未知驱动", func(c *Config) { c.Responder.Driver = "epoll" }},
		{"负预算", func(c *Config) { c.Responder.ProcessBudget = Duration(-time.Second) }},
		{"间隔与预算都为 0", func(c *Config) { c.Responder.ProcessInterval = 0; c.Responder.ProcessBudget = 0 }},
		{"主机名含点", func(c *Config) { c.MDNS.Hostname = "a.b" }},
		{"端口越界", func(c *Config) { c.MDNS.Port = 70000 }},
		{"两个协议族都关闭", func(c *Config) { c.MDNS.EnableIPv4 = false }},
		{"TTL 为 0", func(c *Config) { c.MDNS.HostTTL = 0 }},
		{"未知 NAT 后端", func(c *Config) { c.NAT.Backend = "pcp" }},
		{"NAT 超时为 0", func(c *Config) { c.NAT.RequestTimeout = 0 }},
		{"NAT 速率为 0", func(c *Config) { c.NAT.RequestRate = 0 }},
		{"指标无地址", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.ListenAddr = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("间隔为 0 但有预算", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Responder.ProcessInterval = 0
		assert.NoError(t, cfg.Validate())
	})

	t.Run("禁用 NAT 时忽略其参数", func(t *testing.T) {
		cfg := NewConfig()
		cfg.NAT.Backend = NATBackendNone
		cfg.NAT.RequestTimeout = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"responder": {"driver": "poll", "process_budget": "50ms"},
		"mdns": {"hostname": "printer", "interfaces": ["eth0"]},
		"nat": {"backend": "natpmp", "request_timeout": 2000000000}
	}`)

	cfg, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, DriverPoll, cfg.Responder.Driver)
	assert.Equal(t, 50*time.Millisecond, cfg.Responder.ProcessBudget.Duration())
	assert.Equal(t, "printer", cfg.MDNS.Hostname)
	assert.Equal(t, []string{"eth0"}, cfg.MDNS.Interfaces)
	assert.Equal(t, NATBackendNATPMP, cfg.NAT.Backend)
	assert.Equal(t, 2*time.Second, cfg.NAT.RequestTimeout.Duration())

	// 未出现的字段保留默认值
	assert.Equal(t, 5353, cfg.MDNS.Port)

	_, err = FromJSON([]byte(`{"nat": {"request_timeout": "abc"}}`))
	assert.Error(t, err)
}

func TestFromYAML(t *testing.T) {
	data := []byte(`
responder:
  process_interval: 20ms
mdns:
  hostname: scanner
  enable_ipv6: true
  announce_interval: 500ms
nat:
  backend: upnp
  default_lease: 1h
`)

	cfg, err := FromYAML(data)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, cfg.Responder.ProcessInterval.Duration())
	assert.Equal(t, "scanner", cfg.MDNS.Hostname)
	assert.True(t, cfg.MDNS.EnableIPv6)
	assert.Equal(t, 500*time.Millisecond, cfg.MDNS.AnnounceInterval.Duration())
	assert.Equal(t, NATBackendUPnP, cfg.NAT.Backend)
	assert.Equal(t, time.Hour, cfg.NAT.DefaultLease.Duration())
	assert.Equal(t, DriverAuto, cfg.Responder.Driver)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAML 文件", func(t *testing.T) {
		path := filepath.Join(dir, "bonjour.yaml")
		require.NoError(t, os.WriteFile(path, []byte("mdns:\n  hostname: box\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "box", cfg.MDNS.Hostname)
	})

	t.Run("JSON 文件", func(t *testing.T) {
		path := filepath.Join(dir, "bonjour.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"nat":{"backend":"none"}}`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.False(t, cfg.NAT.Enabled())
	})

	t.Run("校验失败", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"mdns":{"port":0}}`), 0o600))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.json"))
		assert.Error(t, err)
	})
}

func TestRoundTripYAML(t *testing.T) {
	cfg := NewConfig()
	cfg.MDNS.Hostname = "nas"
	cfg.NAT.RetryInterval = Duration(45 * time.Second)

	data, err := cfg.ToYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "retry_interval: 45s")

	back, err := FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestClone(t *testing.T) {
	cfg := NewConfig()
	cfg.MDNS.Interfaces = []string{"eth0"}

	cloned := cfg.Clone()
	cloned.MDNS.Interfaces[0] = "wlan0"

	assert.Equal(t, "eth0", cfg.MDNS.Interfaces[0])
	assert.Nil(t, (*Config)(nil).Clone())
}
