package connpool

// Allocation is a single request's claim on a pooled connection. A caller
// creates an Allocation, offers it to Acquire (and Deduplicate), uses the
// connection's transport for the lifetime of the claim, and finally hands
// it back through Release.
//
// The pool tracks allocations only through weak references. A claim whose
// owner drops it without calling Release is a leak: it is discovered by
// the cleanup sweep once the garbage collector has reclaimed the
// Allocation, the connection is flagged non-reusable, and a diagnostic is
// surfaced through the pool's leak handler. Because it depends on
// collection actually running, leak detection is approximate: it may fire
// late, or not at all in a process under no memory pressure. It is a
// safety net for misbehaving callers, never a substitute for Release.
type Allocation struct {
	// conn is the connection currently held, nil before a successful
	// Acquire and after Release. Written only under the pool's lock.
	conn *Conn
}

// Connection returns the connection this claim currently holds, or nil.
// Valid between a successful Acquire (or Deduplicate migration) and the
// matching Release.
func (a *Allocation) Connection() *Conn {
	return a.conn
}
