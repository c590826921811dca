package consul

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10.0.0.5", "10.0.0.5", true},
		{"::ffff:10.0.0.5", "10.0.0.5", true},
		{"fe80::1%eth0", "fe80::1", true},
		{"2001:db8::1", "2001:db8::1", true},
		{"node-1.local", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		a, ok := ParseAddr(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, a.String(), tt.in)
		}
	}
}

func newTestLocality(t *testing.T, resolves *atomic.Int32, addrs ...string) *Locality {
	t.Helper()
	l, err := NewLocality(time.Minute,
		WithHostname(func() (string, error) { return "node-1", nil }),
		WithResolver(func(_ context.Context, host string) ([]netip.Addr, error) {
			resolves.Add(1)
			assert.Equal(t, "node-1", host)
			out := make([]netip.Addr, 0, len(addrs))
			for _, a := range addrs {
				out = append(out, netip.MustParseAddr(a))
			}
			return out, nil
		}),
	)
	require.NoError(t, err)
	return l
}

func TestLocality_IsLocal(t *testing.T) {
	ctx := context.Background()
	var resolves atomic.Int32
	l := newTestLocality(t, &resolves, "10.0.0.5", "::ffff:192.168.1.9", "fe80::1%eth0")

	cases := map[string]bool{
		"10.0.0.5":        true,
		"192.168.1.9":     true, // mapped 地址被还原
		"::ffff:10.0.0.5": true,
		"fe80::1":         true,
		"10.0.0.6":        false,
		"127.0.0.1":       true, // 回环恒为本机
		"::1":             true,
		"node-1":          false,
	}
	for addr, want := range cases {
		got, err := l.IsLocal(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, want, got, addr)
	}

	local, err := l.LocalAddresses(ctx)
	require.NoError(t, err)
	assert.Len(t, local, 3)
	assert.Equal(t, int32(1), resolves.Load(), "TTL 内只应解析一次")
}

func TestLocality_ResolveError(t *testing.T) {
	l, err := NewLocality(0,
		WithHostname(func() (string, error) { return "node-1", nil }),
		WithResolver(func(context.Context, string) ([]netip.Addr, error) {
			return nil, errors.New("no such host")
		}),
	)
	require.NoError(t, err)

	_, err = l.IsLocal(context.Background(), "10.0.0.5")
	assert.Error(t, err)

	// 回环地址不需要解析
	ok, err := l.IsLocal(context.Background(), "127.0.0.1")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestStaticLocality(t *testing.T) {
	s := NewStaticLocality("10.0.0.5", "bogus")
	addrs, err := s.LocalAddresses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.5")}, addrs)

	ok, _ := s.IsLocal(context.Background(), "::ffff:10.0.0.5")
	assert.True(t, ok)
	ok, _ = s.IsLocal(context.Background(), "10.9.9.9")
	assert.False(t, ok)
}
