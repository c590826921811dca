package consul

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ceyewan/consulctl/xerrors"
)

func TestServiceDefinition_EffectiveID(t *testing.T) {
	tests := []struct {
		name string
		def  ServiceDefinition
		want string
	}{
		{"空 ID 取 Name", ServiceDefinition{Name: "redis", Port: 8000}, "redis"},
		{"显式 ID", ServiceDefinition{ID: "redis-1", Name: "redis"}, "redis-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.def.EffectiveID(); got != tt.want {
				t.Errorf("EffectiveID() = %q, 期望 %q", got, tt.want)
			}
		})
	}
}

func TestDecodeValue(t *testing.T) {
	got, err := DecodeValue("aGVsbG8=")
	assert.NoError(t, err)
	assert.Equal(t, "hello", got)

	assert.Equal(t, "aGVsbG8=", EncodeValue("hello"))

	_, err = DecodeValue("not base64!")
	assert.Error(t, err)
}

func TestKeyEntry_DecodedValue(t *testing.T) {
	v, err := KeyEntry{Key: "motd", Value: EncodeValue("hi")}.DecodedValue()
	assert.NoError(t, err)
	assert.Equal(t, "hi", v)

	_, err = KeyEntry{Key: "motd", Value: "%%%"}.DecodedValue()
	assert.Equal(t, DecodeError, CodeOf(err))
	assert.Contains(t, err.Error(), "motd")
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Operation completed successfully", Message(Success))
	assert.Equal(t, "The service could not be found: redis", Message(ServiceNotFound, "redis"))
	assert.Equal(t, "The registry request failed: a, 2", Message(TransportError, "a", 2))
	assert.Equal(t, Message(UnexpectedError), Message(ErrorCode(99)))

	// 每个结果码对应唯一模板
	seen := map[string]ErrorCode{}
	for _, code := range []ErrorCode{Success, UnexpectedError, TransportError, ServiceNotFound, DecodeError} {
		msg := Message(code)
		if prev, ok := seen[msg]; ok {
			t.Errorf("%v 与 %v 的消息重复: %q", code, prev, msg)
		}
		seen[msg] = code
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Success, CodeOf(nil))
	assert.Equal(t, UnexpectedError, CodeOf(errors.New("boom")))

	err := newError(ServiceNotFound, xerrors.ErrNotFound, "redis")
	wrapped := xerrors.Wrap(err, "deregister")
	assert.Equal(t, ServiceNotFound, CodeOf(wrapped))
	assert.True(t, IsServiceNotFound(wrapped))
	assert.True(t, xerrors.Is(wrapped, xerrors.ErrNotFound))
}

func TestResult(t *testing.T) {
	ok := NewResult(Success, "v")
	assert.True(t, ok.Success)
	assert.Equal(t, "v", ok.Value)

	failed := ResultOf(0, newError(TransportError, errors.New("refused"), "v1/kv/a"))
	assert.False(t, failed.Success)
	assert.Equal(t, TransportError, failed.Code)
	assert.Equal(t, "The registry request failed: v1/kv/a: refused", failed.Message)

	snap := SnapshotResult(CatalogSnapshot{Instances: []ServiceInstance{{ServiceID: "a"}}, Index: 7}, nil)
	assert.True(t, snap.Success)
	assert.Equal(t, uint64(7), snap.CatalogIndex)
	assert.Len(t, snap.Value, 1)

	for _, code := range []ErrorCode{Success, UnexpectedError, TransportError, ServiceNotFound, DecodeError} {
		r := NewResult[any](code, nil)
		assert.Equal(t, code == Success, r.Success, code.String())
	}
}
