package connpool

import "sync"

// RouteDatabase is a blacklist of routes that recently failed to connect.
// Callers record a failure when establishing a connection over a route
// fails, and clear it on the next success; route selection can then favor
// routes that are not postponed. The database has its own small lock so
// recording failures never contends with pool bookkeeping.
type RouteDatabase struct {
	mu     sync.Mutex
	failed map[uint64]struct{}
}

// NewRouteDatabase creates an empty route database.
func NewRouteDatabase() *RouteDatabase {
	return &RouteDatabase{
		failed: make(map[uint64]struct{}),
	}
}

// Failed records that establishing a connection over route failed.
func (d *RouteDatabase) Failed(route *Route) {
	if route == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed[route.Fingerprint()] = struct{}{}
}

// Connected records that route was used successfully, clearing any
// remembered failure.
func (d *RouteDatabase) Connected(route *Route) {
	if route == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.failed, route.Fingerprint())
}

// ShouldPostpone reports whether route failed recently and should be
// tried after fresher alternatives.
func (d *RouteDatabase) ShouldPostpone(route *Route) bool {
	if route == nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.failed[route.Fingerprint()]
	return ok
}

// FailedCount returns the number of routes currently postponed.
func (d *RouteDatabase) FailedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.failed)
}
