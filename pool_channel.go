package redis

import (
	"context"
	"sync"
	"time"

	"github.com/pior/redis/internal/coarsetime"
)

// NewChannelPool creates the default pool: a buffered channel holds up to
// maxIdle idle connections. Acquire never waits; it dials when no idle
// connection is available, so the number of live connections is not
// bounded. A connection released into a full idle set is closed.
func NewChannelPool(constructor func(ctx context.Context) (*Connection, error), maxIdle int32) (Pool, error) {
	if maxIdle < 1 {
		maxIdle = 1
	}
	return &channelPool{
		constructor: constructor,
		idle:        make(chan *channelResource, maxIdle),
	}, nil
}

// channelResource implements Resource for channel pool.
type channelResource struct {
	conn         *Connection
	pool         *channelPool
	lastUsedTime time.Time
}

func (r *channelResource) Value() *Connection {
	return r.conn
}

func (r *channelResource) Release() {
	r.lastUsedTime = coarsetime.Now()
	r.pool.put(r)
}

func (r *channelResource) ReleaseUnused() {
	r.pool.put(r)
}

func (r *channelResource) Destroy() {
	r.conn.Close()
	r.pool.stats.recordDestroy()
	r.pool.stats.recordDeactivate()
}

func (r *channelResource) IdleDuration() time.Duration {
	return coarsetime.Since(r.lastUsedTime)
}

type channelPool struct {
	constructor func(ctx context.Context) (*Connection, error)

	mu     sync.Mutex // guards closed and sends on idle
	idle   chan *channelResource
	closed bool

	stats poolStatsCollector
}

func (p *channelPool) Acquire(ctx context.Context) (Resource, error) {
	p.stats.recordAcquire()

	select {
	case res, ok := <-p.idle:
		if ok {
			p.stats.recordAcquireFromIdle()
			return res, nil
		}
	default:
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.stats.recordAcquireError()
		return nil, ErrPoolClosed
	}

	start := coarsetime.Now()
	conn, err := p.constructor(ctx)
	if err != nil {
		p.stats.recordAcquireError()
		return nil, err
	}
	p.stats.recordAcquireWait(coarsetime.Since(start))
	p.stats.recordCreate()
	p.stats.recordActivate()

	return &channelResource{
		conn:         conn,
		pool:         p,
		lastUsedTime: coarsetime.Now(),
	}, nil
}

func (p *channelPool) put(res *channelResource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		select {
		case p.idle <- res:
			p.stats.recordRelease()
			return
		default:
		}
	}

	res.conn.Close()
	p.stats.recordDestroy()
	p.stats.recordDeactivate()
}

func (p *channelPool) AcquireAllIdle() []Resource {
	var idle []Resource
	for {
		select {
		case res, ok := <-p.idle:
			if !ok {
				return idle
			}
			p.stats.recordAcquireFromIdle()
			idle = append(idle, res)
		default:
			return idle
		}
	}
}

// Close closes the idle connections. Connections checked out are closed
// when they are released.
func (p *channelPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	for res := range p.idle {
		res.conn.Close()
		p.stats.recordIdleDestroy()
	}
}

// Stats returns a snapshot of pool statistics.
func (p *channelPool) Stats() PoolStats {
	return p.stats.snapshot()
}
