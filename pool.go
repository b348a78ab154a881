package redis

import (
	"context"
	"errors"
	"time"
)

var ErrPoolClosed = errors.New("redis: pool closed")

// Pool holds the idle connections of one server.
//
// Acquire returns an idle connection when one is available and dials a new
// one otherwise. Validity (lifespan) is decided by the caller, not by the
// pool.
type Pool interface {
	Acquire(ctx context.Context) (Resource, error)
	AcquireAllIdle() []Resource
	Close()
	Stats() PoolStats
}

// Resource is a connection checked out of a Pool.
type Resource interface {
	Value() *Connection
	// Release returns the connection to the idle set.
	Release()
	// ReleaseUnused returns the connection without marking it as used.
	ReleaseUnused()
	// Destroy closes the connection and forgets it.
	Destroy()
	// IdleDuration is the time since the connection was last released.
	IdleDuration() time.Duration
}

// PoolFactory builds a Pool from a connection constructor. maxIdle is the
// number of idle connections kept; implementations may also use it to cap
// live connections.
type PoolFactory func(constructor func(ctx context.Context) (*Connection, error), maxIdle int32) (Pool, error)
