package xerrors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	if err := Wrap(nil, "ctx"); err != nil {
		t.Errorf("Wrap(nil) = %v，期望 nil", err)
	}

	wrapped := Wrap(ErrNotFound, "read key motd")
	if wrapped.Error() != "read key motd: not found" {
		t.Errorf("Wrap().Error() = %q", wrapped.Error())
	}
	if !Is(wrapped, ErrNotFound) {
		t.Error("Is(wrapped, ErrNotFound) = false，期望 true")
	}
}

func TestWrapf(t *testing.T) {
	if err := Wrapf(nil, "service %s", "redis"); err != nil {
		t.Errorf("Wrapf(nil) = %v，期望 nil", err)
	}
	wrapped := Wrapf(ErrUnavailable, "service %s", "redis")
	if wrapped.Error() != "service redis: unavailable" {
		t.Errorf("Wrapf().Error() = %q", wrapped.Error())
	}
}

func TestCodedError(t *testing.T) {
	if err := WithCode(nil, "X"); err != nil {
		t.Errorf("WithCode(nil) = %v，期望 nil", err)
	}

	coded := WithCode(ErrTimeout, "SINK_FAILED")
	if coded.Error() != "[SINK_FAILED] timeout" {
		t.Errorf("coded.Error() = %q", coded.Error())
	}
	if got := GetCode(Wrap(coded, "apply")); got != "SINK_FAILED" {
		t.Errorf("GetCode() = %q，期望 SINK_FAILED", got)
	}
	if GetCode(ErrTimeout) != "" {
		t.Error("普通错误不应有错误码")
	}

	nested := WithCode(WithCode(ErrTimeout, "INNER"), "OUTER")
	if !HasCode(nested, "INNER") || !HasCode(nested, "OUTER") {
		t.Error("HasCode 应能找到嵌套的错误码")
	}
	if HasCode(nested, "OTHER") {
		t.Error("HasCode(OTHER) = true，期望 false")
	}
	if !errors.Is(nested, ErrTimeout) {
		t.Error("嵌套错误码应保留原始错误链")
	}
}

func TestCombine(t *testing.T) {
	if Combine(nil, nil) != nil {
		t.Error("Combine(nil, nil) 期望 nil")
	}
	if got := Combine(nil, ErrClosed); got != ErrClosed {
		t.Errorf("Combine 单个错误应原样返回，得到 %v", got)
	}

	err := Combine(ErrClosed, ErrTimeout)
	var multi *MultiError
	if !errors.As(err, &multi) || len(multi.Errors) != 2 {
		t.Fatalf("期望 MultiError 含 2 个错误，得到 %v", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("MultiError 应支持 errors.Is 遍历")
	}
	if err.Error() != "closed (and 1 more errors)" {
		t.Errorf("err.Error() = %q", err.Error())
	}
}

func TestMust(t *testing.T) {
	if v := Must("ok", nil); v != "ok" {
		t.Errorf("Must = %q", v)
	}
	defer func() {
		if recover() == nil {
			t.Error("Must(_, err) 未触发 panic")
		}
	}()
	Must(0, ErrInvalidInput)
}
