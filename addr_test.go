package connpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAddress(t *testing.T) {
	addr := NewAddress("example.com", 443)

	assert.Equal(t, "example.com", addr.Host())
	assert.Equal(t, 443, addr.Port())
	assert.Empty(t, addr.Proxy())
	assert.Empty(t, addr.TLSProfile())
}

func TestAddressBuilderChaining(t *testing.T) {
	addr := NewAddress("example.com", 443)
	result := addr.WithProxy("proxy.internal:3128").WithTLSProfile("default")

	assert.Same(t, addr, result, "builder methods should return the same instance")
	assert.Equal(t, "proxy.internal:3128", addr.Proxy())
	assert.Equal(t, "default", addr.TLSProfile())
}

func TestAddressEqual(t *testing.T) {
	tests := []struct {
		name  string
		a     *Address
		b     *Address
		equal bool
	}{
		{
			name:  "identical_direct",
			a:     NewAddress("example.com", 443),
			b:     NewAddress("example.com", 443),
			equal: true,
		},
		{
			name:  "identical_with_proxy_and_profile",
			a:     NewAddress("example.com", 443).WithProxy("p:3128").WithTLSProfile("strict"),
			b:     NewAddress("example.com", 443).WithProxy("p:3128").WithTLSProfile("strict"),
			equal: true,
		},
		{
			name:  "different_host",
			a:     NewAddress("example.com", 443),
			b:     NewAddress("example.org", 443),
			equal: false,
		},
		{
			name:  "different_port",
			a:     NewAddress("example.com", 443),
			b:     NewAddress("example.com", 8443),
			equal: false,
		},
		{
			name:  "different_proxy",
			a:     NewAddress("example.com", 443).WithProxy("p1:3128"),
			b:     NewAddress("example.com", 443).WithProxy("p2:3128"),
			equal: false,
		},
		{
			name:  "different_tls_profile",
			a:     NewAddress("example.com", 443).WithTLSProfile("strict"),
			b:     NewAddress("example.com", 443).WithTLSProfile("lax"),
			equal: false,
		},
		{
			name:  "nil_other",
			a:     NewAddress("example.com", 443),
			b:     nil,
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
			assert.Equal(t, tt.equal, tt.b.Equal(tt.a), "Equal should be symmetric")
		})
	}
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "example.com:443", NewAddress("example.com", 443).String())
	assert.Equal(t, "example.com:443 via proxy.internal:3128",
		NewAddress("example.com", 443).WithProxy("proxy.internal:3128").String())
}

func TestAddressFingerprint(t *testing.T) {
	base := NewAddress("example.com", 443).WithTLSProfile("default")
	same := NewAddress("example.com", 443).WithTLSProfile("default")

	assert.Equal(t, base.Fingerprint(), same.Fingerprint(),
		"equal addresses must share a fingerprint")

	variants := []*Address{
		NewAddress("example.org", 443).WithTLSProfile("default"),
		NewAddress("example.com", 8443).WithTLSProfile("default"),
		NewAddress("example.com", 443).WithTLSProfile("strict"),
		NewAddress("example.com", 443).WithTLSProfile("default").WithProxy("p:3128"),
	}
	for _, v := range variants {
		assert.NotEqual(t, base.Fingerprint(), v.Fingerprint(),
			"address %s should not collide with %s", v, base)
	}
}

func TestRouteAccessors(t *testing.T) {
	addr := NewAddress("example.com", 443)
	route := NewRoute(addr, "93.184.216.34:443")

	assert.Same(t, addr, route.Address())
	assert.Equal(t, "93.184.216.34:443", route.Target())
	assert.Equal(t, "example.com:443 -> 93.184.216.34:443", route.String())
}

func TestRouteEqual(t *testing.T) {
	addr := NewAddress("example.com", 443)

	tests := []struct {
		name  string
		a     *Route
		b     *Route
		equal bool
	}{
		{
			name:  "identical",
			a:     NewRoute(addr, "93.184.216.34:443"),
			b:     NewRoute(NewAddress("example.com", 443), "93.184.216.34:443"),
			equal: true,
		},
		{
			name:  "different_target",
			a:     NewRoute(addr, "93.184.216.34:443"),
			b:     NewRoute(addr, "93.184.216.35:443"),
			equal: false,
		},
		{
			name:  "different_address",
			a:     NewRoute(addr, "93.184.216.34:443"),
			b:     NewRoute(NewAddress("example.org", 443), "93.184.216.34:443"),
			equal: false,
		},
		{
			name:  "nil_other",
			a:     NewRoute(addr, "93.184.216.34:443"),
			b:     nil,
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
		})
	}
}

func TestRouteFingerprint(t *testing.T) {
	addr := NewAddress("example.com", 443)
	a := NewRoute(addr, "93.184.216.34:443")
	b := NewRoute(NewAddress("example.com", 443), "93.184.216.34:443")
	c := NewRoute(addr, "93.184.216.35:443")

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), addr.Fingerprint(),
		"a route should not collide with its bare address")
}
