package mdns

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-bonjour/config"
	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
)

// ModuleInput Fx 输入参数
type ModuleInput struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// ModuleOutput Fx 输出
type ModuleOutput struct {
	fx.Out

	Engine engineif.Engine
	MDNS   *Engine
}

// ProvideEngine 提供 mDNS 引擎
//
// 引擎的生命周期由响应器负责（Init / Exit），这里不注册钩子。
func ProvideEngine(input ModuleInput) (ModuleOutput, error) {
	cfg := input.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	e, err := New(cfg)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Engine: e, MDNS: e}, nil
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("engine.mdns",
		fx.Provide(ProvideEngine),
	)
}
