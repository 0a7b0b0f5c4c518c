package types

import (
	"errors"
	"strconv"
)

// ============================================================================
//                              ErrorCode - 状态码
// ============================================================================

// ErrorCode 操作状态码
//
// 取值与 DNS-SD 错误空间保持一致：0 表示成功，其余为负数。
// ErrorCode 实现 error 接口，因此可以直接作为 error 返回，
// 也可以通过 errors.Is 与下面的哨兵值比较。
type ErrorCode int32

// 状态码定义
const (
	CodeNoError                   ErrorCode = 0
	CodeUnknown                   ErrorCode = -65537
	CodeNoSuchName                ErrorCode = -65538
	CodeNoMemory                  ErrorCode = -65539
	CodeBadParam                  ErrorCode = -65540
	CodeBadReference              ErrorCode = -65541
	CodeBadState                  ErrorCode = -65542
	CodeBadFlags                  ErrorCode = -65543
	CodeUnsupported               ErrorCode = -65544
	CodeNotInitialized            ErrorCode = -65545
	CodeAlreadyRegistered         ErrorCode = -65547
	CodeNameConflict              ErrorCode = -65548
	CodeInvalid                   ErrorCode = -65549
	CodeFirewall                  ErrorCode = -65550
	CodeIncompatible              ErrorCode = -65551
	CodeBadInterfaceIndex         ErrorCode = -65552
	CodeRefused                   ErrorCode = -65553
	CodeNoSuchRecord              ErrorCode = -65554
	CodeNoAuth                    ErrorCode = -65555
	CodeNoSuchKey                 ErrorCode = -65556
	CodeNATTraversal              ErrorCode = -65557
	CodeDoubleNAT                 ErrorCode = -65558
	CodeBadTime                   ErrorCode = -65559
	CodeBadSig                    ErrorCode = -65560
	CodeBadKey                    ErrorCode = -65561
	CodeTransient                 ErrorCode = -65562
	CodeServiceNotRunning         ErrorCode = -65563
	CodeNATPortMappingUnsupported ErrorCode = -65564
	CodeNATPortMappingDisabled    ErrorCode = -65565
	CodeNoRouter                  ErrorCode = -65566
	CodePollingMode               ErrorCode = -65567
	CodeTimeout                   ErrorCode = -65568
)

// 常用状态码的 error 哨兵值
//
// 使用示例:
//
//	if errors.Is(err, types.ErrBadParam) { ... }
var (
	ErrUnknown                   error = CodeUnknown
	ErrNoMemory                  error = CodeNoMemory
	ErrBadParam                  error = CodeBadParam
	ErrBadReference              error = CodeBadReference
	ErrBadState                  error = CodeBadState
	ErrUnsupported               error = CodeUnsupported
	ErrNotInitialized            error = CodeNotInitialized
	ErrAlreadyRegistered         error = CodeAlreadyRegistered
	ErrBadInterfaceIndex         error = CodeBadInterfaceIndex
	ErrNATTraversal              error = CodeNATTraversal
	ErrServiceNotRunning         error = CodeServiceNotRunning
	ErrNATPortMappingUnsupported error = CodeNATPortMappingUnsupported
	ErrNoRouter                  error = CodeNoRouter
	ErrTimeout                   error = CodeTimeout
)

var codeNames = map[ErrorCode]string{
	CodeNoError:                   "no error",
	CodeUnknown:                   "unknown",
	CodeNoSuchName:                "no such name",
	CodeNoMemory:                  "no memory",
	CodeBadParam:                  "bad parameter",
	CodeBadReference:              "bad reference",
	CodeBadState:                  "bad state",
	CodeBadFlags:                  "bad flags",
	CodeUnsupported:               "unsupported",
	CodeNotInitialized:            "not initialized",
	CodeAlreadyRegistered:         "already registered",
	CodeNameConflict:              "name conflict",
	CodeInvalid:                   "invalid",
	CodeFirewall:                  "firewall",
	CodeIncompatible:              "incompatible",
	CodeBadInterfaceIndex:         "bad interface index",
	CodeRefused:                   "refused",
	CodeNoSuchRecord:              "no such record",
	CodeNoAuth:                    "no auth",
	CodeNoSuchKey:                 "no such key",
	CodeNATTraversal:              "NAT traversal",
	CodeDoubleNAT:                 "double NAT",
	CodeBadTime:                   "bad time",
	CodeBadSig:                    "bad signature",
	CodeBadKey:                    "bad key",
	CodeTransient:                 "transient",
	CodeServiceNotRunning:         "service not running",
	CodeNATPortMappingUnsupported: "NAT port mapping unsupported",
	CodeNATPortMappingDisabled:    "NAT port mapping disabled",
	CodeNoRouter:                  "no router",
	CodePollingMode:               "polling mode",
	CodeTimeout:                   "timeout",
}

// Error 实现 error 接口
func (c ErrorCode) Error() string {
	if name, ok := codeNames[c]; ok {
		return "dnssd: " + name + " (" + strconv.Itoa(int(c)) + ")"
	}
	return "dnssd: error " + strconv.Itoa(int(c))
}

// Name 返回状态码名称，未知状态码返回十进制数值
func (c ErrorCode) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// OK 是否为成功状态
func (c ErrorCode) OK() bool {
	return c == CodeNoError
}

// Err 将状态码转换为 error，成功时返回 nil
func (c ErrorCode) Err() error {
	if c == CodeNoError {
		return nil
	}
	return c
}

// CodeOf 从 error 中提取状态码
//
// nil 映射为 CodeNoError；链中包含 ErrorCode 时原样返回；
// 其余错误统一映射为 CodeUnknown。
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeNoError
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return CodeUnknown
}
