package responder

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-bonjour/config"
	"github.com/dep2p/go-bonjour/internal/logbridge"
	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
)

// ModuleInput Fx 输入参数
type ModuleInput struct {
	fx.In

	Engine     engineif.Engine
	Config     *config.Config        `optional:"true"`
	Bridge     *logbridge.Bridge     `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// ModuleOutput Fx 输出
type ModuleOutput struct {
	fx.Out

	Responder *Responder
}

// ProvideResponder 提供响应器
func ProvideResponder(input ModuleInput) (ModuleOutput, error) {
	opts := []Option{
		WithMetrics(NewMetrics(input.Registerer)),
	}
	if input.Config != nil {
		opts = append(opts, WithDriverKind(DriverKind(input.Config.Responder.Driver)))
	}
	if input.Bridge != nil {
		opts = append(opts, WithLogBridge(input.Bridge))
	}

	r, err := New(input.Engine, opts...)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Responder: r}, nil
}

// Module 返回 Fx 模块
//
// OnStart 调用 Init，OnStop 调用 Exit。
func Module() fx.Option {
	return fx.Module("responder",
		fx.Provide(ProvideResponder),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC        fx.Lifecycle
	Responder *Responder
}

func registerLifecycle(input lifecycleInput) {
	r := input.Responder
	input.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return r.Init()
		},
		OnStop: func(context.Context) error {
			r.Exit()
			return nil
		},
	})
}
