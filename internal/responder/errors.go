package responder

import "errors"

// 响应器构造错误
var (
	// ErrNilEngine 未提供引擎
	ErrNilEngine = errors.New("responder: nil engine")

	// ErrUnknownDriver 未知的驱动类型
	ErrUnknownDriver = errors.New("responder: unknown event loop driver")

	// ErrDriverUnsupported 引擎或平台不支持所选驱动
	ErrDriverUnsupported = errors.New("responder: engine does not support driver")
)
