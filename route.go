package connpool

import (
	"fmt"

	"github.com/dchest/siphash"
)

// Route is one concrete resolved network path realizing an Address, for
// example one specific IP among several that a host resolves to. A
// connection is bound to exactly one route at creation and never changes it.
type Route struct {
	// addr is the destination identity this route realizes
	addr *Address
	// target is the resolved socket address, "ip:port"
	target string
}

// NewRoute creates a Route binding addr to the resolved socket address
// target ("ip:port").
func NewRoute(addr *Address, target string) *Route {
	return &Route{
		addr:   addr,
		target: target,
	}
}

// Address returns the destination identity this route realizes.
func (r *Route) Address() *Address {
	return r.addr
}

// Target returns the resolved socket address.
func (r *Route) Target() string {
	return r.target
}

// Equal reports whether two routes denote the same resolved path to the
// same destination identity.
func (r *Route) Equal(other *Route) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.addr.Equal(other.addr) && r.target == other.target
}

// String returns a string representation of the route.
// Format: "host:port -> ip:port".
func (r *Route) String() string {
	return fmt.Sprintf("%s -> %s", r.addr, r.target)
}

// Fingerprint returns a stable 64-bit identifier for the route, equal for
// equal routes.
func (r *Route) Fingerprint() uint64 {
	return siphash.Hash(fingerprintKey0, fingerprintKey1,
		[]byte(r.addr.canonical()+"\x00"+r.target))
}
