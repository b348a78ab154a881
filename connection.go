package redis

import (
	"bufio"
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pior/redis/resp"
)

var ErrConnectionClosed = errors.New("redis: connection closed")

// jitterRatio bounds the random extension of a connection's lifespan, so
// connections opened together do not all expire together.
const jitterRatio = 0.3

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Connection is a single connection to a server, used by one request at a
// time. It owns its transport and expires after a jittered lifespan.
type Connection struct {
	conn   net.Conn
	reader *resp.Reader
	writer *bufio.Writer

	addr      string
	createdAt time.Time
	lifespan  time.Duration
	counter   *Counter

	requests  atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewConnection wraps an established transport. The shared counter is
// incremented now and decremented when the connection is closed.
//
// The effective lifespan is lifespan plus a random jitter in
// [0, 0.3*lifespan).
func NewConnection(conn net.Conn, lifespan time.Duration, counter *Counter) *Connection {
	if counter == nil {
		counter = &Counter{}
	}
	counter.increment()

	return &Connection{
		conn:      conn,
		reader:    resp.NewReader(conn),
		writer:    bufio.NewWriter(conn),
		addr:      conn.RemoteAddr().String(),
		createdAt: time.Now(),
		lifespan:  lifespan + lifespanJitter(lifespan),
		counter:   counter,
	}
}

func lifespanJitter(lifespan time.Duration) time.Duration {
	limit := time.Duration(float64(lifespan) * jitterRatio)
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

// Addr returns the remote address.
func (c *Connection) Addr() string {
	return c.addr
}

// CreatedAt returns when the connection was established.
func (c *Connection) CreatedAt() time.Time {
	return c.createdAt
}

// Lifespan returns the effective lifespan, jitter included.
func (c *Connection) Lifespan() time.Duration {
	return c.lifespan
}

// Requests returns the number of round trips attempted on the connection.
func (c *Connection) Requests() uint64 {
	return c.requests.Load()
}

// IsValid reports whether the connection is open and younger than its
// effective lifespan.
func (c *Connection) IsValid() bool {
	return !c.closed.Load() && time.Since(c.createdAt) < c.lifespan
}

// IsClosed reports whether Close has been called.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Close closes the transport and decrements the shared counter. Only the
// first call has an effect. Transport close errors are ignored.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.conn.Close()
		c.counter.decrement()
	})
	return nil
}

// Roundtrip sends one request written by encode and reads one reply.
//
// keepAlive is false when the stream is not clean after the reply: bytes
// remain unread, or the server closed its side. The connection must not
// be reused in that case. Errors from the reply itself (an error value
// sent by the server) are returned as values, not errors.
//
// Cancelling ctx interrupts a blocked write or read; the connection is
// unusable afterwards.
func (c *Connection) Roundtrip(ctx context.Context, encode func(w io.Writer) error) (v resp.Value, keepAlive bool, err error) {
	if c.closed.Load() {
		return resp.Value{}, false, ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return resp.Value{}, false, err
	}

	c.requests.Add(1)

	stop := c.watch(ctx)

	if err := encode(c.writer); err != nil {
		stop()
		return resp.Value{}, false, c.ioError(ctx, "write", err)
	}

	v, err = c.reader.ReadValue()
	if err != nil {
		stop()
		return resp.Value{}, false, c.ioError(ctx, "read", err)
	}

	if !stop() {
		return v, false, nil
	}
	return v, c.Reusable(), nil
}

// Reusable reports whether the stream is clean: nothing buffered beyond
// the last reply, and nothing (not even end of stream) pending on the
// transport.
func (c *Connection) Reusable() bool {
	if c.closed.Load() || c.reader.Buffered() > 0 {
		return false
	}
	return streamIdle(c.conn)
}

// watch applies the deadline of ctx to the transport and arranges for a
// cancellation to interrupt blocked I/O.
//
// The returned function ends the watch and clears the deadline, so an idle
// connection does not carry the deadline of its last request. It reports
// false when the cancellation already fired: the transport deadline is
// then in the past and the connection must not be reused.
func (c *Connection) watch(ctx context.Context) func() bool {
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(aLongTimeAgo)
	})
	return func() bool {
		if !stop() {
			return false
		}
		_ = c.conn.SetDeadline(time.Time{})
		return true
	}
}

func (c *Connection) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := context.Cause(ctx); ctxErr != nil {
		return &resp.ConnectionError{Op: op, Err: ctxErr}
	}
	// The transport deadline can fire just before the context's own timer.
	if deadline, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) && !time.Now().Before(deadline) {
		return &resp.ConnectionError{Op: op, Err: context.DeadlineExceeded}
	}
	var ce *resp.ConnectionError
	var pe *resp.ProtocolError
	if errors.As(err, &ce) || errors.As(err, &pe) {
		return err
	}
	return &resp.ConnectionError{Op: op, Err: err}
}
