package bonjour

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-bonjour/config"
)

// Option 配置选项函数
type Option func(*options) error

type options struct {
	// config 基础配置，为空时使用默认配置
	config *config.Config
	// configFile 配置文件路径，优先于 config
	configFile string

	hostname   string
	driver     string
	natBackend string

	sink       LogSink
	registerer prometheus.Registerer

	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{}
}

func applyOptions(opts []Option) (*options, error) {
	o := newOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// toConfig 合并基础配置与选项覆盖项，并验证结果
func (o *options) toConfig() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case o.configFile != "":
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case o.config != nil:
		cfg = o.config.Clone()
	default:
		cfg = config.NewConfig()
	}

	// 覆盖: 主机名
	if o.hostname != "" {
		cfg.MDNS.Hostname = o.hostname
	}
	// 覆盖: 驱动
	if o.driver != "" {
		cfg.Responder.Driver = o.driver
	}
	// 覆盖: NAT 后端
	if o.natBackend != "" {
		cfg.NAT.Backend = o.natBackend
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置来源
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用给定配置作为基础配置
//
// 配置会被复制，之后修改 cfg 不影响已创建的 App。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return ErrNilConfig
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON / YAML 文件加载基础配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configFile = path
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              覆盖项
// ════════════════════════════════════════════════════════════════════════════

// WithHostname 设置通告的主机名（不含域名）
func WithHostname(name string) Option {
	return func(o *options) error {
		o.hostname = name
		return nil
	}
}

// WithDriver 选择事件循环驱动：DriverAuto / DriverSelect / DriverPoll
func WithDriver(kind string) Option {
	return func(o *options) error {
		switch kind {
		case DriverAuto, DriverSelect, DriverPoll:
			o.driver = kind
			return nil
		default:
			return fmt.Errorf("unknown driver %q", kind)
		}
	}
}

// WithNATBackend 选择 NAT 映射后端：auto / natpmp / upnp / none
func WithNATBackend(backend string) Option {
	return func(o *options) error {
		o.natBackend = backend
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              集成
// ════════════════════════════════════════════════════════════════════════════

// WithLogSink 设置宿主日志回调
func WithLogSink(sink LogSink) Option {
	return func(o *options) error {
		o.sink = sink
		return nil
	}
}

// WithRegisterer 在指定的 Prometheus 注册表上注册指标
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
