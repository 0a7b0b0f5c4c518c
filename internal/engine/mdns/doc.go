// Package mdns 实现组播 DNS 响应器引擎
//
// 引擎在每块支持组播的网卡上加入 224.0.0.251（可选 ff02::fb），
// 以 <hostname>.local. 的名义应答 A / AAAA 查询，并维护资源记录缓存。
//
// # 事件循环
//
// 引擎本身不创建事件循环，由集成层驱动：
//   - unix 平台上通过 BuildReadySet / DispatchReadySet 与 poll(2) 就绪集合配合
//   - 其它平台通过 Execute / Poll，接收协程只负责把报文放入队列
//
// 所有协议处理、缓存修改和回调都发生在驱动线程上。
//
// # 主机名
//
// 启动时先发送 3 次探测，未收到冲突应答后再按配置通告；
// 收到冲突时主机名追加序号（host-2、host-3…）并重新探测。
// 关闭时发送 TTL 为 0 的告别报文。
//
// # NAT
//
// NAT 穿透请求交给 internal/engine/nat 的调度器，结果在 Execute 中回调。
package mdns

import "github.com/dep2p/go-bonjour/internal/util/logger"

// 包级别日志实例
var log = logger.Logger("engine.mdns")

// DaemonVersion 引擎版本号，通过 DaemonVersion 属性对外报告
const DaemonVersion uint32 = 8783004
