// Package natpmp 实现 NAT-PMP 端口映射
//
// natpmp 使用 NAT-PMP 协议（RFC 6886）向默认网关请求公网地址与端口映射，
// 主要用于 Apple 路由器和其他支持该协议的设备。
//
// # 功能
//
//   - 自动发现网关（或使用配置的网关）
//   - 获取公网地址
//   - 创建 / 删除端口映射
//
// 续约由上层的 NAT 调度器负责。
//
// # 使用示例
//
//	mapper := natpmp.NewMapper(natpmp.WithTimeout(3 * time.Second))
//	defer mapper.Close()
//
//	m, err := mapper.AddMapping(ctx, "udp", 8080, 8080, time.Hour)
package natpmp
