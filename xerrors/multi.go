package xerrors

import "fmt"

// MultiError 聚合多个错误，例如 mirror 向多个 sink 分发时的失败集合。
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	default:
		return fmt.Sprintf("%v (and %d more errors)", m.Errors[0], len(m.Errors)-1)
	}
}

// Unwrap 支持 errors.Is/As 遍历全部子错误
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 合并非 nil 的错误：全部为 nil 返回 nil，只有一个时原样返回。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}
