package redis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pior/redis/resp"
)

const (
	DefaultLifespan    = 3 * time.Minute
	DefaultMaxIdle     = 64
	DefaultDialTimeout = 5 * time.Second
)

// PoolConfig configures the connections to one server.
type PoolConfig struct {
	// Lifespan is how long a connection may be reused after it is opened.
	// Each connection adds a random jitter of up to 30%.
	// Default: DefaultLifespan.
	Lifespan time.Duration

	// MaxIdle is the size of the idle set. With the default pool, dialing
	// is not bounded and extra connections are closed on release. With
	// NewPuddlePool it also caps live connections.
	// Default: DefaultMaxIdle.
	MaxIdle int32

	// DialTimeout bounds connection establishment.
	// Default: DefaultDialTimeout.
	DialTimeout time.Duration

	// Dialer is the net.Dialer used to create new connections.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Pool is the idle set factory.
	// If nil, uses NewChannelPool.
	Pool PoolFactory

	// Resolver resolves the server hostname.
	// If nil, uses net.DefaultResolver.
	Resolver Resolver

	// RefreshInterval is how often the hostname is resolved again.
	// Default: DefaultRefreshInterval.
	RefreshInterval time.Duration

	// MaxIdleTime closes connections left idle for longer, at the next
	// health check. Zero means no limit.
	MaxIdleTime time.Duration

	// HealthCheckInterval is how often idle connections are checked. Those
	// past their lifespan or MaxIdleTime, or closed by the server, are
	// closed. Zero disables the check: Connect still discards them.
	HealthCheckInterval time.Duration

	// Logger receives background errors. If nil, uses slog.Default().
	Logger *slog.Logger

	// for testing purposes only
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Lifespan <= 0 {
		c.Lifespan = DefaultLifespan
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = DefaultMaxIdle
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.Pool == nil {
		c.Pool = NewChannelPool
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.dial == nil {
		c.dial = c.Dialer.DialContext
	}
	return c
}

// ConnectionPool hands out connections to one server, identified by a
// hostname and a port. New connections go to an address picked by an
// AddressRotator. Idle connections are reused until their lifespan ends.
type ConnectionPool struct {
	host    string
	port    int
	config  PoolConfig
	rotator *AddressRotator
	pool    Pool
	counter *Counter
	expired atomic.Uint64
	closed  atomic.Bool
	logger  *slog.Logger

	stopHealthCheck chan struct{}
	healthCheckDone chan struct{}
}

// NewConnectionPool resolves host and prepares the pool. No connection is
// opened until the first Connect. It fails when host cannot be resolved.
func NewConnectionPool(ctx context.Context, host string, port int, config PoolConfig) (*ConnectionPool, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("redis: invalid port %d", port)
	}
	config = config.withDefaults()

	rotator, err := NewAddressRotator(ctx, host,
		WithResolver(config.Resolver),
		WithRefreshInterval(config.RefreshInterval),
		WithLogger(config.Logger),
	)
	if err != nil {
		return nil, err
	}

	p := &ConnectionPool{
		host:    host,
		port:    port,
		config:  config,
		rotator: rotator,
		counter: &Counter{},
		logger:  config.Logger,
	}

	p.pool, err = config.Pool(p.dial, config.MaxIdle)
	if err != nil {
		rotator.Stop()
		return nil, err
	}

	if config.HealthCheckInterval > 0 {
		p.stopHealthCheck = make(chan struct{})
		p.healthCheckDone = make(chan struct{})
		go p.healthCheckLoop()
	}
	return p, nil
}

// dial opens a connection to one of the current addresses.
func (p *ConnectionPool) dial(ctx context.Context) (*Connection, error) {
	addr := net.JoinHostPort(p.rotator.Pick(), strconv.Itoa(p.port))

	ctx, cancel := context.WithTimeout(ctx, p.config.DialTimeout)
	defer cancel()

	netConn, err := p.config.dial(ctx, "tcp", addr)
	if err != nil {
		p.logger.LogAttrs(ctx, slog.LevelDebug, "redis: dial failed", slog.String("addr", addr), slog.Any("error", err))
		return nil, &resp.ConnectionError{Op: "dial", Err: err}
	}

	p.logger.LogAttrs(ctx, slog.LevelDebug, "redis: connection opened", slog.String("addr", addr))
	return NewConnection(netConn, p.config.Lifespan, p.counter), nil
}

// Connect returns a lease on a valid connection: an idle one when
// available, a new one otherwise. Idle connections past their lifespan, or
// closed by the server while idle, are closed along the way.
func (p *ConnectionPool) Connect(ctx context.Context) (*Lease, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	for {
		res, err := p.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		// A connection dialed by this call is used even with a lifespan
		// shorter than the dial itself.
		conn := res.Value()
		fresh := !conn.CreatedAt().Before(start)
		if (fresh && !conn.IsClosed()) || (conn.IsValid() && conn.Reusable()) {
			return &Lease{pool: p, res: res}, nil
		}

		p.expired.Add(1)
		res.Destroy()
	}
}

// returnConnection puts a leased connection back in the idle set, or
// closes it when it is no longer valid.
func (p *ConnectionPool) returnConnection(res Resource) {
	conn := res.Value()
	if p.closed.Load() || !conn.IsValid() {
		if !conn.IsClosed() && !p.closed.Load() {
			p.expired.Add(1)
		}
		res.Destroy()
		return
	}
	res.Release()
}

func (p *ConnectionPool) healthCheckLoop() {
	defer close(p.healthCheckDone)

	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopHealthCheck:
			return
		case <-ticker.C:
			p.checkIdleConnections()
		}
	}
}

// checkIdleConnections closes the idle connections that Connect would
// discard, plus those idle for longer than MaxIdleTime. The others go back
// to the idle set.
func (p *ConnectionPool) checkIdleConnections() {
	closed := 0
	for _, res := range p.pool.AcquireAllIdle() {
		conn := res.Value()
		tooIdle := p.config.MaxIdleTime > 0 && res.IdleDuration() > p.config.MaxIdleTime
		if tooIdle || !conn.IsValid() || !conn.Reusable() {
			p.expired.Add(1)
			res.Destroy()
			closed++
			continue
		}
		res.ReleaseUnused()
	}

	if closed > 0 {
		p.logger.LogAttrs(context.Background(), slog.LevelDebug, "redis: closed idle connections",
			slog.String("host", p.host), slog.Int("count", closed))
	}
}

// Execute runs one request on a leased connection and returns the lease.
func (p *ConnectionPool) Execute(ctx context.Context, encode func(w io.Writer) error) (resp.Value, error) {
	lease, err := p.Connect(ctx)
	if err != nil {
		return resp.Value{}, err
	}
	defer lease.Close()

	return lease.Roundtrip(ctx, encode)
}

// TotalConnections returns the number of live connections, leased or idle.
func (p *ConnectionPool) TotalConnections() int64 {
	return p.counter.Value()
}

// Addresses returns the addresses new connections are dialed to.
func (p *ConnectionPool) Addresses() []string {
	return p.rotator.Addresses()
}

// Host returns the configured hostname.
func (p *ConnectionPool) Host() string {
	return p.host
}

// Port returns the configured port.
func (p *ConnectionPool) Port() int {
	return p.port
}

// Stats returns a snapshot of the pool statistics.
func (p *ConnectionPool) Stats() PoolStats {
	s := p.pool.Stats()
	s.LiveConns = p.counter.Value()
	s.ExpiredConns = p.expired.Load()
	return s
}

// Close closes the idle connections and stops the address refresh.
// Leased connections are closed when their lease is closed.
func (p *ConnectionPool) Close() {
	if p.closed.Swap(true) {
		return
	}
	if p.stopHealthCheck != nil {
		close(p.stopHealthCheck)
		<-p.healthCheckDone
	}
	p.pool.Close()
	p.rotator.Stop()
}

// Lease is exclusive use of one connection. It must be closed exactly
// once; further calls to Close do nothing.
type Lease struct {
	// Failing marks the connection as unfit for reuse: Close destroys it
	// instead of returning it to the idle set.
	Failing bool

	pool   *ConnectionPool
	res    Resource
	closed bool
}

// Conn returns the leased connection.
func (l *Lease) Conn() *Connection {
	return l.res.Value()
}

// Roundtrip runs one request on the leased connection. The lease is
// marked failing when the request fails or the stream is not clean
// afterwards.
func (l *Lease) Roundtrip(ctx context.Context, encode func(w io.Writer) error) (resp.Value, error) {
	conn := l.Conn()
	v, keepAlive, err := conn.Roundtrip(ctx, encode)
	if err == nil && !keepAlive {
		l.pool.logger.LogAttrs(ctx, slog.LevelDebug, "redis: discarding connection with unread data",
			slog.String("addr", conn.Addr()))
	}
	if err != nil || !keepAlive {
		l.Failing = true
	}
	return v, err
}

// Close ends the lease.
func (l *Lease) Close() {
	if l.closed {
		return
	}
	l.closed = true

	if l.Failing {
		l.res.Destroy()
		return
	}
	l.pool.returnConnection(l.res)
}
