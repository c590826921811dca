package consul

import (
	"fmt"
	"strings"

	"github.com/ceyewan/consulctl/xerrors"
)

// ErrorCode 操作结果码
type ErrorCode int

const (
	Success ErrorCode = iota
	UnexpectedError
	TransportError
	ServiceNotFound
	DecodeError
)

func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "Success"
	case UnexpectedError:
		return "UnexpectedError"
	case TransportError:
		return "TransportError"
	case ServiceNotFound:
		return "ServiceNotFound"
	case DecodeError:
		return "DecodeError"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Message 返回结果码对应的可读消息，args 为相关标识（host、key、service id 等），
// 以 ": a, b" 的形式追加到模板之后。未知结果码按 UnexpectedError 处理。
func Message(code ErrorCode, args ...any) string {
	var tmpl string
	switch code {
	case Success:
		tmpl = "Operation completed successfully"
	case TransportError:
		tmpl = "The registry request failed"
	case ServiceNotFound:
		tmpl = "The service could not be found"
	case DecodeError:
		tmpl = "The registry response could not be decoded"
	default:
		tmpl = "An unexpected error has occurred"
	}
	if len(args) == 0 {
		return tmpl
	}

	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return tmpl + ": " + strings.Join(parts, ", ")
}

// Error 携带结果码的操作错误
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, cause error, args ...any) *Error {
	return &Error{Code: code, Message: Message(code, args...), Cause: cause}
}

// CodeOf 提取错误的结果码：nil 为 Success，非 *Error 为 UnexpectedError
func CodeOf(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if xerrors.As(err, &e) {
		return e.Code
	}
	return UnexpectedError
}

// IsServiceNotFound 判断是否为服务不存在
func IsServiceNotFound(err error) bool {
	return CodeOf(err) == ServiceNotFound
}

// errStatus 非 2xx 响应
type errStatus struct {
	method string
	path   string
	status int
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.method, e.path, e.status)
}

// StatusOf 返回导致错误的 HTTP 状态码，网络层失败或非 HTTP 错误返回 0
func StatusOf(err error) int {
	var s *errStatus
	if xerrors.As(err, &s) {
		return s.status
	}
	return 0
}
