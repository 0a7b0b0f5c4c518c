// Package config 提供响应器的统一配置
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，带 Default* 与 Validate
//   - 支持从 JSON / YAML 加载
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.MDNS.Hostname = "printer"
//	cfg.NAT.Backend = config.NATBackendNATPMP
//
//	// 从文件加载（按扩展名选择 JSON 或 YAML）
//	cfg, err := config.Load("bonjour.yaml")
package config

import "errors"

// ErrNilConfig 配置为空
var ErrNilConfig = errors.New("config is nil")

// Config 响应器完整配置
//
//   - Responder: 驱动类型与处理节奏
//   - MDNS: 引擎网络参数
//   - NAT: 端口映射后端
//   - Metrics: Prometheus 指标
type Config struct {
	// Responder 集成层配置
	Responder ResponderConfig `json:"responder" yaml:"responder"`

	// MDNS 引擎配置
	MDNS MDNSConfig `json:"mdns" yaml:"mdns"`

	// NAT NAT 穿透配置
	NAT NATConfig `json:"nat" yaml:"nat"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Responder: DefaultResponderConfig(),
		MDNS:      DefaultMDNSConfig(),
		NAT:       DefaultNATConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := c.Responder.Validate(); err != nil {
		return err
	}
	if err := c.MDNS.Validate(); err != nil {
		return err
	}
	if err := c.NAT.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return nil
}

// Clone 深拷贝
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cloned := *c
	cloned.MDNS.Interfaces = append([]string(nil), c.MDNS.Interfaces...)
	return &cloned
}
