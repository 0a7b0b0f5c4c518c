package mdns

import "errors"

// mDNS 引擎错误
var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("mdns: nil config")

	// ErrNoInterfaces 没有可用的网卡
	ErrNoInterfaces = errors.New("mdns: no usable multicast interface")

	// ErrAlreadyInitialized 引擎已初始化
	ErrAlreadyInitialized = errors.New("mdns: engine already initialized")

	// ErrNilCache 缓存池为空
	ErrNilCache = errors.New("mdns: nil cache store")

	errNoFamilyAddress = errors.New("mdns: interface has no address of this family")
)
