// Package upnp 实现 UPnP 端口映射
//
// upnp 使用 UPnP IGD 协议配置路由器的端口映射，支持大多数家用路由器。
//
// # 功能
//
//   - 自动发现 IGD 设备（IGDv2 / IGDv1，WANIPConnection 与 WANPPPConnection）
//   - 获取外部 IP
//   - 创建 / 删除端口映射
//
// # 使用示例
//
//	mapper := upnp.NewMapper(upnp.WithDescription("bonjour"))
//	defer mapper.Close()
//
//	m, err := mapper.AddMapping(ctx, "udp", 8080, 8080, time.Hour)
package upnp
