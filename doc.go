// Package bonjour 提供一个可嵌入的 mDNS 响应器集成层
//
// 宿主程序通过本包驱动一个 mDNS / DNS-SD 响应器引擎：
// 初始化引擎、周期性地驱动其事件循环、把引擎日志转发到宿主日志，
// 以及创建 NAT 端口映射请求。
//
// # 快速开始
//
//	import "github.com/dep2p/go-bonjour"
//
//	app, err := bonjour.NewApp(
//	    bonjour.WithHostname("printer"),
//	    bonjour.WithLogSink(func(tag bonjour.Tag, msg string) {
//	        fmt.Printf("[%c] %s\n", tag, msg)
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Stop(context.Background())
//
//	// 在 UDP 5353 上请求一个端口映射
//	mapping, err := app.CreatePortMapping(ctx, bonjour.ProtocolUDP, 5353, 0, 7200, onMapped)
//
// # 两种使用方式
//
//   - App: 由 Fx 组装引擎、响应器和事件循环协程，回调在事件循环协程上执行
//   - NewResponder: 只创建响应器，宿主自行调用 Init / Process / Exit
//
// 响应器不是并发安全的。使用 App 时，所有对响应器的调用都应通过 App.Do
// 投递到事件循环协程上执行。
//
// # 文件组织
//
//   - bonjour.go  - 版本信息与类型别名
//   - options.go  - 函数式选项
//   - app.go      - App 生命周期
//   - fx.go       - Fx 应用组装
//   - errors.go   - 错误定义
package bonjour
