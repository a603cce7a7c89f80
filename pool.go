package connpool

import (
	"fmt"
	"net"
	"sync"
	"time"
	"weak"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// Pool owns the set of known connections and the policy of which to keep
// open. All state is guarded by one mutex: the pool is small and every
// operation is O(number of connections), so finer-grained locking would
// add complexity without measurable benefit.
//
// Eviction runs on a single background goroutine per pool, started lazily
// by the first Put and terminating itself once the pool is empty. It
// sleeps exactly until the next eviction deadline and is woken early by
// state changes that could shorten it.
//
// The expected call order for a request path is: Acquire; on a miss,
// establish a connection externally and Put it; Deduplicate to resolve
// concurrent establishment races to a multiplexed destination; Release
// when the claim completes.
type Pool struct {
	// mu guards conns, per-connection bookkeeping and cleanupRunning
	mu sync.Mutex

	// conns holds all known connections in insertion order
	conns []*Conn

	maxIdleConns int
	keepAlive    time.Duration
	leakHandler  LeakHandler

	// cleanupRunning is set while the cleanup goroutine is alive
	cleanupRunning bool

	// wake nudges a sleeping cleanup goroutine; buffered so wake-ups
	// coalesce and never block the sender
	wake chan struct{}

	// routes remembers recently failed routes so callers can prefer
	// fresh ones when establishing new connections
	routes *RouteDatabase
}

// NewPool creates a connection pool from config. A nil config uses the
// defaults (5 idle connections, 5 minute keep-alive). Returns an error if
// the configuration is invalid.
func NewPool(config *PoolConfig) (*Pool, error) {
	if config == nil {
		config = NewPoolConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, oops.
			Code("INVALID_CONFIG").
			In("connpool").
			Wrapf(err, "pool config validation failed")
	}

	p := &Pool{
		maxIdleConns: config.MaxIdleConns,
		keepAlive:    config.KeepAlive,
		leakHandler:  config.LeakHandler,
		wake:         make(chan struct{}, 1),
		routes:       NewRouteDatabase(),
	}

	if p.leakHandler == nil {
		p.leakHandler = logLeak
	}

	return p, nil
}

// Acquire hands claim an existing connection eligible for addr, if any.
// A non-nil route narrows the match to that exact resolved path. Returns
// true with the claim registered on the connection, in which case the
// caller must not establish a new one. Returns false on a miss: the
// caller establishes a connection and registers it with Put.
func (p *Pool) Acquire(addr *Address, claim *Allocation, route *Route) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.conns {
		if c.eligible(addr, route) {
			p.attach(claim, c)
			return true
		}
	}

	return false
}

// Deduplicate replaces the connection held by claim with an existing
// multiplexed connection to addr, if one exists. This converges two
// requests that raced to open independent connections to the same
// multiplexable destination onto one. The claim must be the sole holder
// of a freshly established connection. Returns the now-redundant
// transport for the caller to close, or nil if there is no duplicate.
func (p *Pool) Deduplicate(addr *Address, claim *Allocation) net.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := claim.conn
	if prev == nil {
		return nil
	}

	for _, c := range p.conns {
		if c == prev || !c.multiplexed || !c.eligible(addr, nil) {
			continue
		}

		prev.removeAllocation(claim)
		prev.noNewStreams = true
		p.attach(claim, c)

		if prev.liveAllocationCount() == 0 {
			prev.idleAt = time.Now()
			p.removeLocked(prev)
		}

		log.WithFields(logrus.Fields{
			"address":   addr.String(),
			"redundant": prev.id,
			"kept":      c.id,
		}).Debug("deduplicated racing connections")

		return prev.transport
	}

	return nil
}

// Put inserts a newly established connection into the pool and starts the
// cleanup goroutine if it is not already running.
func (p *Pool) Put(c *Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.cleanupRunning {
		p.cleanupRunning = true
		go p.cleanupLoop()
	}

	p.conns = append(p.conns, c)
	p.wakeCleanup()
}

// Release drops claim's hold on its connection and runs the became-idle
// decision when it was the last claim. Returns the transport the caller
// must close, or nil when the connection stays pooled (or the claim held
// nothing).
func (p *Pool) Release(claim *Allocation) net.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := claim.conn
	if c == nil {
		return nil
	}

	claim.conn = nil
	c.removeAllocation(claim)

	if c.liveAllocationCount() > 0 {
		return nil
	}

	c.idleAt = time.Now()
	if p.connectionBecameIdleLocked(c) {
		return c.transport
	}

	return nil
}

// ConnectionBecameIdle notifies the pool that c's last claim has been
// released. Returns true if the connection has been removed from the pool
// and the caller must close its transport; false keeps it pooled.
func (p *Pool) ConnectionBecameIdle(c *Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connectionBecameIdleLocked(c)
}

// connectionBecameIdleLocked applies the became-idle decision: a retired
// connection, or any idle connection when no idle capacity exists, is
// removed immediately; otherwise the cleanup goroutine is woken since the
// idle limit may now be exceeded. The pool lock must be held.
func (p *Pool) connectionBecameIdleLocked(c *Conn) bool {
	if c.noNewStreams || p.maxIdleConns == 0 {
		p.removeLocked(c)
		return true
	}

	p.wakeCleanup()
	return false
}

// IdleConnectionCount returns the number of pooled connections with no
// live claims.
func (p *Pool) IdleConnectionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	idle := 0
	for _, c := range p.conns {
		if c.liveAllocationCount() == 0 {
			idle++
		}
	}
	return idle
}

// ConnectionCount returns the total number of pooled connections.
func (p *Pool) ConnectionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.conns)
}

// RouteDatabase returns the pool's memory of failed routes.
func (p *Pool) RouteDatabase() *RouteDatabase {
	return p.routes
}

// EvictAll removes every idle connection from the pool and closes its
// transport. Connections with live claims are left untouched. Transports
// are closed after the lock is released so slow teardown never blocks
// other pool operations.
func (p *Pool) EvictAll() {
	var evicted []*Conn

	p.mu.Lock()
	for i := 0; i < len(p.conns); {
		c := p.conns[i]
		if c.liveAllocationCount() > 0 {
			i++
			continue
		}
		c.noNewStreams = true
		evicted = append(evicted, c)
		p.conns = append(p.conns[:i], p.conns[i+1:]...)
	}
	p.mu.Unlock()

	for _, c := range evicted {
		closeQuietly(c.transport)
	}

	if len(evicted) > 0 {
		log.WithField("evicted", len(evicted)).Debug("evicted all idle connections")
	}
}

// attach registers claim on c. The pool lock must be held.
func (p *Pool) attach(claim *Allocation, c *Conn) {
	claim.conn = c
	c.allocations = append(c.allocations, weak.Make(claim))
}

// removeLocked drops c from the connection list. The pool lock must be
// held; the caller closes the transport after releasing it.
func (p *Pool) removeLocked(c *Conn) {
	for i, known := range p.conns {
		if known == c {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			return
		}
	}
}

// cleanupLoop is the background eviction sweep. Exactly one instance runs
// per pool while it has connections: started by Put, exiting when
// cleanupOnce reports the pool empty. Between sweeps it sleeps until the
// next eviction deadline or an early wake, whichever comes first.
func (p *Pool) cleanupLoop() {
	for {
		wait, again := p.cleanupOnce(time.Now())
		if !again {
			return
		}
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-p.wake:
			timer.Stop()
		}
	}
}

// cleanupOnce performs one maintenance pass: it prunes leaked claims,
// then evicts the longest-idle connection if it has exceeded the
// keep-alive limit or the idle connection limit. Returns how long to wait
// before the next pass (0 to run again immediately after an eviction) and
// whether the loop should keep running at all.
func (p *Pool) cleanupOnce(now time.Time) (wait time.Duration, again bool) {
	inUseCount := 0
	idleCount := 0
	var longestIdle *Conn
	var longestIdleFor time.Duration

	p.mu.Lock()

	for _, c := range p.conns {
		if p.pruneAndGetAllocationCount(c, now) > 0 {
			inUseCount++
			continue
		}

		idleCount++

		if idleFor := now.Sub(c.idleAt); longestIdle == nil || idleFor > longestIdleFor {
			longestIdleFor = idleFor
			longestIdle = c
		}
	}

	switch {
	case longestIdle != nil &&
		(longestIdleFor >= p.keepAlive || idleCount > p.maxIdleConns):
		// Eviction due. Remove under the lock, close outside it, then run
		// again immediately: another connection may now be evictable too.
		p.removeLocked(longestIdle)
		p.mu.Unlock()

		closeQuietly(longestIdle.transport)
		log.WithFields(logrus.Fields{
			"conn":     longestIdle.id,
			"route":    longestIdle.route.String(),
			"idle_for": longestIdleFor.String(),
		}).Debug("evicted idle connection")
		return 0, true

	case idleCount > 0:
		// A connection will be ready to evict once the longest-idle one
		// reaches the keep-alive limit.
		p.mu.Unlock()
		return p.keepAlive - longestIdleFor, true

	case inUseCount > 0:
		// Every connection is in use; nothing can be evicted sooner than
		// a full keep-alive period.
		p.mu.Unlock()
		return p.keepAlive, true

	default:
		// Empty pool. The next Put restarts the loop.
		p.cleanupRunning = false
		p.mu.Unlock()
		return 0, false
	}
}

// pruneAndGetAllocationCount removes leaked claims from c and returns the
// number of live ones. A cleared weak reference means the owning
// application abandoned the claim without releasing it: the connection is
// flagged non-reusable and, if no live claims remain, its idle timestamp
// is backdated so the current sweep can evict it immediately. The pool
// lock must be held.
//
// Detection is approximate: a cleared reference is only observable after
// the garbage collector has reclaimed the abandoned Allocation.
func (p *Pool) pruneAndGetAllocationCount(c *Conn, now time.Time) int {
	refs := c.allocations
	for i := 0; i < len(refs); {
		if refs[i].Value() != nil {
			i++
			continue
		}

		// A leaked claim is an application bug; the connection can no
		// longer be trusted for new claims.
		refs = append(refs[:i], refs[i+1:]...)
		c.noNewStreams = true
		p.reportLeak(c)

		if len(refs) == 0 {
			c.idleAt = now.Add(-p.keepAlive)
			break
		}
	}

	c.allocations = refs
	return len(refs)
}

// reportLeak surfaces a leak diagnostic through the configured handler.
// Handler failures never reach pool callers.
func (p *Pool) reportLeak(c *Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Warn("leak handler panicked")
		}
	}()

	addr := c.route.Address()
	p.leakHandler(addr, fmt.Sprintf(
		"a connection to %s was leaked: a claim was abandoned without being released"+
			" (did you forget to close a response body?)", addr))
}

// wakeCleanup nudges a sleeping cleanup goroutine so it re-evaluates its
// eviction deadline. Non-blocking; concurrent wake-ups coalesce.
func (p *Pool) wakeCleanup() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// logLeak is the default leak handler.
func logLeak(addr *Address, msg string) {
	log.WithFields(logrus.Fields{
		"address":     addr.String(),
		"fingerprint": fmt.Sprintf("%016x", addr.Fingerprint()),
	}).Warn(msg)
}

// closeQuietly closes a transport whose pool bookkeeping has already been
// committed. A close failure is not actionable at that point and is only
// logged.
func closeQuietly(transport net.Conn) {
	if transport == nil {
		return
	}
	if err := transport.Close(); err != nil {
		log.WithError(err).Debug("transport close failed during eviction")
	}
}
