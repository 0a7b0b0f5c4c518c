package config

import "errors"

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// Enabled 是否启用指标
	Enabled bool `json:"enabled" yaml:"enabled"`

	// ListenAddr 指标 HTTP 监听地址
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
}

// DefaultMetricsConfig 默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:    false,
		ListenAddr: "127.0.0.1:9353",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.Enabled && c.ListenAddr == "" {
		return errors.New("metrics listen address is empty but metrics are enabled")
	}
	return nil
}
