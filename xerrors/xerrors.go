// Package xerrors 为 consulctl 的各个组件提供统一的错误处理工具。
//
// 组件内部约定：
//   - 每个组件在自己的 errors.go 中用 xerrors.New 声明哨兵错误
//   - 向上返回时用 Wrap/Wrapf 追加上下文，保留错误链
//   - 需要机器可读分类时用 WithCode 附加错误码
//
// 本包只依赖标准库，可被任何组件引用。
package xerrors

import (
	"errors"
	"fmt"
)

// 通用哨兵错误
var (
	// ErrNotFound 请求的资源不存在
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput 输入参数无效
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable 远端服务不可用
	ErrUnavailable = errors.New("unavailable")

	// ErrTimeout 操作超时
	ErrTimeout = errors.New("timeout")

	// ErrClosed 组件已关闭
	ErrClosed = errors.New("closed")
)

// 标准库函数再导出，调用方无需同时引入 errors 包
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Wrap 为错误追加上下文。err 为 nil 时返回 nil。
//
//	if err != nil {
//	    return xerrors.Wrap(err, "decode catalog listing")
//	}
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 与 Wrap 相同，但上下文支持格式化。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Must 在 err 非 nil 时 panic，只应出现在初始化阶段。
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}
