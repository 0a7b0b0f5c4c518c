package config

import (
	"errors"
	"fmt"
	"time"
)

// 事件循环驱动类型
const (
	DriverAuto   = "auto"
	DriverSelect = "select"
	DriverPoll   = "poll"
)

// ResponderConfig 集成层配置
type ResponderConfig struct {
	// Driver 事件循环驱动：auto / select / poll
	Driver string `json:"driver" yaml:"driver"`

	// ProcessInterval 宿主循环调用 Process 的间隔，不能与 ProcessBudget 同时为 0
	ProcessInterval Duration `json:"process_interval" yaml:"process_interval"`

	// ProcessBudget 每次 Process 的最长处理时间
	ProcessBudget Duration `json:"process_budget" yaml:"process_budget"`
}

// DefaultResponderConfig 默认集成层配置
func DefaultResponderConfig() ResponderConfig {
	return ResponderConfig{
		Driver:          DriverAuto,
		ProcessInterval: Duration(10 * time.Millisecond),
		ProcessBudget:   Duration(100 * time.Millisecond),
	}
}

// Validate 验证集成层配置
func (c ResponderConfig) Validate() error {
	switch c.Driver {
	case "", DriverAuto, DriverSelect, DriverPoll:
	default:
		return fmt.Errorf("unknown responder driver %q", c.Driver)
	}
	if c.ProcessInterval < 0 {
		return errors.New("responder process interval must not be negative")
	}
	if c.ProcessBudget < 0 {
		return errors.New("responder process budget must not be negative")
	}
	// 两者都为 0 时事件循环不会等待
	if c.ProcessInterval == 0 && c.ProcessBudget == 0 {
		return errors.New("responder process interval and budget must not both be zero")
	}
	return nil
}
