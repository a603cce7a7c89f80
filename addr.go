// Package connpool manages reuse of client connections for reduced network
// latency. Requests that share the same Address may share a Conn; this
// package implements the policy of which connections to keep open for
// future use. It does not establish connections or speak any wire protocol:
// dialing, TLS negotiation and name resolution are the caller's concern,
// and the pool is handed ready-to-use connections via Put.
package connpool

import (
	"fmt"

	"github.com/dchest/siphash"
)

// Fixed SipHash key for identity fingerprints. The fingerprint is a cheap
// stable identifier for log fields and route-database keys, not a secret.
const (
	fingerprintKey0 = 0x676f2d68747470 // "go-http"
	fingerprintKey1 = 0x636f6e6e706f6f // "connpoo"
)

// Address is the immutable destination identity a caller requests a
// connection for. Two connections are interchangeable only if their
// addresses are equal, which covers the target host and port, the proxy
// in use (if any), and the TLS configuration equivalence class.
type Address struct {
	// host is the logical target host (name or literal IP)
	host string
	// port is the target port
	port int
	// proxy identifies the proxy this address is reached through, empty for direct
	proxy string
	// tlsProfile names the TLS configuration equivalence class, empty for cleartext
	tlsProfile string
}

// NewAddress creates an Address for a direct cleartext connection to
// host:port. Use WithProxy and WithTLSProfile to refine the identity.
func NewAddress(host string, port int) *Address {
	return &Address{
		host: host,
		port: port,
	}
}

// WithProxy sets the proxy component of the identity.
// Addresses reached through different proxies never share connections.
func (a *Address) WithProxy(proxy string) *Address {
	a.proxy = proxy
	return a
}

// WithTLSProfile sets the TLS configuration equivalence class of the
// identity. Connections negotiated under different TLS configurations
// are never interchangeable.
func (a *Address) WithTLSProfile(profile string) *Address {
	a.tlsProfile = profile
	return a
}

// Host returns the logical target host.
func (a *Address) Host() string {
	return a.host
}

// Port returns the target port.
func (a *Address) Port() int {
	return a.port
}

// Proxy returns the proxy component of the identity, empty for direct.
func (a *Address) Proxy() string {
	return a.proxy
}

// TLSProfile returns the TLS configuration equivalence class name.
func (a *Address) TLSProfile() string {
	return a.tlsProfile
}

// Equal reports whether two addresses denote the same destination identity.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.host == other.host &&
		a.port == other.port &&
		a.proxy == other.proxy &&
		a.tlsProfile == other.tlsProfile
}

// String returns a string representation of the address.
// Format: "host:port" or "host:port via proxy".
func (a *Address) String() string {
	if a.proxy != "" {
		return fmt.Sprintf("%s:%d via %s", a.host, a.port, a.proxy)
	}
	return fmt.Sprintf("%s:%d", a.host, a.port)
}

// Fingerprint returns a stable 64-bit identifier for the address, equal
// for equal addresses. Used for compact log fields and as a map key.
func (a *Address) Fingerprint() uint64 {
	return siphash.Hash(fingerprintKey0, fingerprintKey1, []byte(a.canonical()))
}

// canonical returns the canonical byte form hashed by Fingerprint.
func (a *Address) canonical() string {
	return fmt.Sprintf("%s\x00%d\x00%s\x00%s", a.host, a.port, a.proxy, a.tlsProfile)
}
