package host

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bonjour/config"
	"github.com/dep2p/go-bonjour/internal/responder"
)

// ModuleInput Fx 输入参数
type ModuleInput struct {
	fx.In

	Responder *responder.Responder
	Config    *config.Config `optional:"true"`
}

// ModuleOutput Fx 输出
type ModuleOutput struct {
	fx.Out

	Runner *Runner
}

// ProvideRunner 提供事件循环驱动器
func ProvideRunner(input ModuleInput) ModuleOutput {
	cfg := config.DefaultResponderConfig()
	if input.Config != nil {
		cfg = input.Config.Responder
	}
	return ModuleOutput{Runner: NewRunner(input.Responder, cfg)}
}

// Module 返回 Fx 模块
//
// 必须在 responder.Module() 之后加载：Fx 按相反顺序执行 OnStop，
// 事件循环先停止，响应器才退出。
func Module() fx.Option {
	return fx.Module("host",
		fx.Provide(ProvideRunner),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC     fx.Lifecycle
	Runner *Runner
}

func registerLifecycle(input lifecycleInput) {
	h := input.Runner
	input.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return h.Start()
		},
		OnStop: func(context.Context) error {
			h.Stop()
			return nil
		},
	})
}
