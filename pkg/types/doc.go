// Package types 定义 go-bonjour 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在宿主程序、响应器集成层和引擎之间传递数据。
//
// # 文件组织
//
//   - errors.go  - ErrorCode 错误码体系（与 DNS-SD 错误空间一致）
//   - enums.go   - Flags, Protocol, Tag, Severity
//   - port.go    - IPPort 网络字节序端口
package types
