// Package main 提供 bonjourd 命令行入口
//
// bonjourd 在本机运行 mDNS 响应器，通告主机名，
// 并可按 -map 参数在网关上请求 NAT 端口映射。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-bonjour"
	"github.com/dep2p/go-bonjour/config"
	"github.com/dep2p/go-bonjour/internal/util/logger"
)

var log = logger.Logger("cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//	命令行参数：运行时覆盖
//	配置文件（JSON / YAML）：持久化配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile = flag.String("config", "", "配置文件路径（.json / .yaml）")
	hostname   = flag.String("hostname", "", "通告的主机名（默认使用系统主机名）")
	driver     = flag.String("driver", "", "事件循环驱动 (auto/select/poll)")
	natBackend = flag.String("nat", "", "NAT 映射后端 (auto/natpmp/upnp/none)")
	metrics    = flag.String("metrics", "", "指标监听地址，例如 127.0.0.1:9353")
	logFile    = flag.String("log", "", "日志文件路径")

	showVersion = flag.Bool("version", false, "显示版本信息")

	mappings mappingList
)

func init() {
	flag.Var(&mappings, "map", "端口映射 proto:port[:external[:ttl]] 或 address，可重复")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		defer func() { _ = f.Close() }()
		logger.SetOutput(f)
	}

	opts, cfg, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	var srv *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, bonjour.WithRegisterer(reg))
		srv = startMetricsServer(cfg.Metrics.ListenAddr, reg)
	}

	fmt.Printf("📦 %s\n", bonjour.VersionInfo())
	log.Info("启动 bonjourd", "version", bonjour.Version, "commit", bonjour.GitCommit, "buildDate", bonjour.BuildDate)

	app, err := bonjour.NewApp(opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	if name, err := app.HostName(ctx); err == nil {
		fmt.Printf("主机名: %s\n", name)
	}
	createMappings(ctx, app)

	fmt.Println("响应器已启动，按 Ctrl+C 退出")
	waitForSignal()

	fmt.Println("\n正在关闭响应器...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if srv != nil {
		_ = srv.Shutdown(stopCtx)
	}
	return app.Stop(stopCtx)
}

// buildOptions 由命令行参数构造选项，并返回合并后的配置
func buildOptions() ([]bonjour.Option, *config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	if *hostname != "" {
		cfg.MDNS.Hostname = *hostname
	}
	if *driver != "" {
		cfg.Responder.Driver = *driver
	}
	if *natBackend != "" {
		cfg.NAT.Backend = *natBackend
	}
	if *metrics != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = *metrics
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	opts := []bonjour.Option{
		bonjour.WithConfig(cfg),
		bonjour.WithLogSink(printSink),
	}
	return opts, cfg, nil
}

// printSink 把响应器日志打印到标准输出
func printSink(tag bonjour.Tag, msg string) {
	fmt.Printf("[%c] %s\n", tag, msg)
}

// createMappings 为每个 -map 参数创建映射，结果打印到标准输出
//
// 映射在退出时随响应器一起释放。
func createMappings(ctx context.Context, app *bonjour.App) {
	for _, m := range mappings {
		_, err := app.CreatePortMapping(ctx, m.protocol, m.internal, m.external, m.ttl, printMapping, m)
		if err != nil {
			log.Warn("创建端口映射失败", "mapping", m, "err", err)
			fmt.Printf("映射 %s 失败: %v\n", m, err)
		}
	}
}

func printMapping(_ bonjour.ServiceRef, _ bonjour.Flags, _ uint32, code bonjour.ErrorCode,
	addr netip.Addr, _ bonjour.Protocol, _ bonjour.IPPort, external bonjour.IPPort, ttl uint32, userCtx any) {
	m := userCtx.(mappingArg)
	if code != 0 {
		fmt.Printf("映射 %s: %s (%d)\n", m, code.Name(), int32(code))
		return
	}
	if m.protocol == bonjour.ProtocolNone {
		fmt.Printf("公网地址: %s\n", addr)
		return
	}
	fmt.Printf("映射 %s -> %s:%d (ttl %ds)\n", m, addr, external.Host(), ttl)
}

func startMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("指标服务已启动", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("指标服务失败", "err", err)
		}
	}()
	return srv
}

func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
}

func printVersion() {
	fmt.Println(bonjour.VersionInfo())
	fmt.Printf("  engine: %d\n", bonjour.EngineVersion)
	if bonjour.GoVersion != "" {
		fmt.Printf("  go: %s\n", bonjour.GoVersion)
	}
}
