package redis

import "sync/atomic"

// Counter tracks the live connections of a pool. It is shared by the pool
// and every connection the pool creates: a connection increments it when
// it is created and decrements it exactly once when it is closed.
type Counter struct {
	n atomic.Int64
}

// Value returns the number of connections created and not yet closed.
func (c *Counter) Value() int64 {
	return c.n.Load()
}

func (c *Counter) increment() {
	c.n.Add(1)
}

func (c *Counter) decrement() {
	c.n.Add(-1)
}
