//go:build !unix

package responder

import (
	"fmt"

	engineif "github.com/dep2p/go-bonjour/pkg/interfaces/engine"
)

func newSelectDriver(engineif.Engine) (EventLoopDriver, error) {
	return nil, fmt.Errorf("%w: %s", ErrDriverUnsupported, DriverSelect)
}

// newPlatformDriver 非 unix 平台默认使用 poll 驱动
func newPlatformDriver(e engineif.Engine) (EventLoopDriver, error) {
	return newPollDriver(e)
}
