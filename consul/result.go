package consul

// Result 渲染给调用方（CLI、日志）的统一结果。Success 恒等于 Code == Success。
type Result[T any] struct {
	Code         ErrorCode
	Message      string
	Success      bool
	Value        T
	CatalogIndex uint64
}

// NewResult 按结果码构造结果，args 参与消息模板
func NewResult[T any](code ErrorCode, value T, args ...any) Result[T] {
	return Result[T]{
		Code:    code,
		Message: Message(code, args...),
		Success: code == Success,
		Value:   value,
	}
}

// ResultOf 把 (value, err) 转换为结果；err 为 *Error 时保留其消息
func ResultOf[T any](value T, err error) Result[T] {
	if err == nil {
		return NewResult(Success, value)
	}

	var zero T
	r := NewResult(CodeOf(err), zero)
	r.Message = err.Error()
	return r
}

// SnapshotResult 把快照读取结果转换为带索引水位的结果
func SnapshotResult(s CatalogSnapshot, err error) Result[[]ServiceInstance] {
	r := ResultOf(s.Instances, err)
	if err == nil {
		r.CatalogIndex = s.Index
	}
	return r
}
