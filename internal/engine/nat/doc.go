// Package nat 实现引擎的 NAT 穿透调度器
//
// Traversal 管理所有已注册的 NAT 穿透请求：
//   - 公网地址请求：定期刷新，地址变化时回调
//   - 端口映射请求：在租期过半时续约，续约失败直到过期才报告
//
// 网关调用在工作协程中执行，结果进入队列，只有在 Execute 中才会
// 写回请求并调用回调，因此回调总是发生在事件循环线程上。
//
// 具体的网关协议由 natpmp / upnp 子包实现，NewMapper 根据配置选择。
package nat

import "github.com/dep2p/go-bonjour/internal/util/logger"

// 包级别日志实例
var log = logger.Logger("engine.nat")
