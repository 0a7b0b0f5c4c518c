package bonjour

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-bonjour/config"
	"github.com/dep2p/go-bonjour/internal/engine/mdns"
	"github.com/dep2p/go-bonjour/internal/host"
	"github.com/dep2p/go-bonjour/internal/logbridge"
	"github.com/dep2p/go-bonjour/internal/responder"
	"github.com/dep2p/go-bonjour/internal/util/logger"
)

var log = logger.Logger("bonjour")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置、日志桥接器、指标注册表
//  2. mDNS 引擎
//  3. 响应器（OnStart: Init，OnStop: Exit）
//  4. 事件循环（OnStart: 启动协程，OnStop: 停止协程）
//
// Fx 按相反顺序执行 OnStop，因此事件循环总是先于响应器停止。
func buildFxApp(o *options, cfg *config.Config, a *App) (*fx.App, error) {
	bridge := logbridge.New()
	if o.sink != nil {
		bridge.SetSink(o.sink)
	}

	fxOpts := []fx.Option{
		fx.Supply(cfg),
		fx.Supply(bridge),
	}
	if o.registerer != nil {
		reg := o.registerer
		fxOpts = append(fxOpts, fx.Provide(func() prometheus.Registerer { return reg }))
	}

	fxOpts = append(fxOpts,
		mdns.Module(),
		responder.Module(),
		host.Module(),
	)

	// 用户自定义选项
	fxOpts = append(fxOpts, o.userFxOptions...)

	fxOpts = append(fxOpts,
		fx.Populate(&a.responder, &a.runner, &a.engine, &a.bridge),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(fxOpts...)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}

	log.Debug("Fx 应用已构建",
		"driver", cfg.Responder.Driver,
		"nat", cfg.NAT.Backend,
		"metrics", o.registerer != nil)
	return app, nil
}
