package connpool

import (
	"net"
	"time"
	"weak"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Conn is one established transport-level link to a destination, bound to
// a single Route for its whole life. The transport itself (dialing, TLS,
// framing) is established externally; a Conn only carries the bookkeeping
// the pool needs to decide reuse and eviction.
//
// The noNewStreams flag, the idleAt timestamp and the allocation list are
// owned by the pool once the connection has been inserted via Put, and are
// only read or written while holding that pool's lock. Callers holding a
// claim may use the transport for I/O without any pool involvement.
type Conn struct {
	// id identifies the connection in log output
	id string

	// route is the resolved network path this connection is bound to
	route *Route

	// transport is the established network link
	transport net.Conn

	// multiplexed reports whether the connection can carry several
	// concurrent claims (e.g. HTTP/2) or only one (e.g. HTTP/1.1)
	multiplexed bool

	// noNewStreams marks the connection administratively retired: it keeps
	// serving existing claims but is never handed out for new ones
	noNewStreams bool

	// idleAt is when the connection last dropped to zero live claims;
	// meaningful only while it has no live claims
	idleAt time.Time

	// allocations tracks outstanding claims. References are weak so an
	// abandoned claim becomes detectable without its owner cooperating.
	allocations []weak.Pointer[Allocation]
}

// NewConn creates a pooled connection wrapping an established transport.
// multiplexed declares whether the transport can carry more than one
// concurrent claim.
func NewConn(route *Route, transport net.Conn, multiplexed bool) (*Conn, error) {
	if route == nil {
		return nil, oops.
			Code("INVALID_ROUTE").
			In("connpool").
			Errorf("route cannot be nil")
	}

	if transport == nil {
		return nil, oops.
			Code("INVALID_CONN").
			In("connpool").
			With("route", route.String()).
			Errorf("transport cannot be nil")
	}

	return &Conn{
		id:          ulid.Make().String(),
		route:       route,
		transport:   transport,
		multiplexed: multiplexed,
		idleAt:      time.Now(),
	}, nil
}

// ID returns the connection's log identifier.
func (c *Conn) ID() string {
	return c.id
}

// Route returns the resolved network path this connection is bound to.
func (c *Conn) Route() *Route {
	return c.route
}

// Transport returns the underlying network link.
func (c *Conn) Transport() net.Conn {
	return c.transport
}

// Multiplexed reports whether the connection can carry several concurrent
// claims.
func (c *Conn) Multiplexed() bool {
	return c.multiplexed
}

// eligible reports whether the connection can carry a new claim for addr.
// A non-nil route narrows the match to that exact resolved path.
// The pool lock must be held.
func (c *Conn) eligible(addr *Address, route *Route) bool {
	if c.noNewStreams {
		return false
	}

	if !c.multiplexed && c.liveAllocationCount() > 0 {
		return false
	}

	if !c.route.Address().Equal(addr) {
		return false
	}

	if route != nil && !c.route.Equal(route) {
		return false
	}

	return true
}

// liveAllocationCount returns the number of claims still reachable by
// their owners. Cleared references are counted out but not removed; only
// the cleanup sweep prunes them. The pool lock must be held.
func (c *Conn) liveAllocationCount() int {
	live := 0
	for _, ref := range c.allocations {
		if ref.Value() != nil {
			live++
		}
	}
	return live
}

// removeAllocation drops claim from the allocation list. The pool lock
// must be held.
func (c *Conn) removeAllocation(claim *Allocation) {
	for i, ref := range c.allocations {
		if ref.Value() == claim {
			c.allocations = append(c.allocations[:i], c.allocations[i+1:]...)
			return
		}
	}
}
