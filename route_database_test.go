package connpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteDatabase(t *testing.T) {
	db := NewRouteDatabase()
	route := testRoute("example.com", "10.0.0.1:443")
	other := testRoute("example.com", "10.0.0.2:443")

	assert.False(t, db.ShouldPostpone(route), "fresh routes are not postponed")
	assert.Zero(t, db.FailedCount())

	db.Failed(route)
	assert.True(t, db.ShouldPostpone(route))
	assert.False(t, db.ShouldPostpone(other), "failure is per route, not per address")
	assert.Equal(t, 1, db.FailedCount())

	db.Connected(route)
	assert.False(t, db.ShouldPostpone(route), "success clears the remembered failure")
	assert.Zero(t, db.FailedCount())
}

func TestRouteDatabaseNilRoute(t *testing.T) {
	db := NewRouteDatabase()

	db.Failed(nil)
	db.Connected(nil)

	assert.False(t, db.ShouldPostpone(nil))
	assert.Zero(t, db.FailedCount())
}
