package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pior/redis/resp"
	"github.com/sony/gobreaker/v2"
)

// NoTTL stores an item without expiration.
const NoTTL = 0

var (
	ErrNoServers       = errors.New("redis: no servers provided")
	ErrUnexpectedReply = errors.New("redis: unexpected reply")
	ErrClientClosed    = errors.New("redis: client closed")
)

type Item struct {
	Key   string
	Value []byte
	TTL   time.Duration
	Found bool // indicates whether the key was found
}

type Querier interface {
	Get(ctx context.Context, key string) (Item, error)
	Set(ctx context.Context, item Item) error
	Do(ctx context.Context, args ...string) (resp.Value, error)
}

// Config holds configuration for the client.
type Config struct {
	// PoolConfig applies to the connection pool of every server.
	PoolConfig

	// SelectServer picks which server to use for a key.
	// If nil, uses DefaultServerSelector.
	SelectServer ServerSelector

	// NewCircuitBreaker creates a circuit breaker for a server.
	// Called once per server address when the pool is created.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker
}

// serverPool wraps a pool with its server address.
type serverPool struct {
	addr           string
	pool           *ConnectionPool
	circuitBreaker CircuitBreaker // nil if not configured
}

// Client issues commands to one or more servers. Keys are spread across
// servers by SelectServer. It is safe for concurrent use.
type Client struct {
	pools        []*serverPool
	selectServer ServerSelector
	closed       atomic.Bool

	stats clientStatsCollector
}

var _ Querier = (*Client)(nil)

// Dial returns a client for a single server. Connections are reused for
// lifespan, plus jitter.
func Dial(ctx context.Context, host string, port int, lifespan time.Duration) (*Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return NewClient(ctx, NewStaticServers(addr), Config{
		PoolConfig: PoolConfig{Lifespan: lifespan},
	})
}

// NewClient creates a client for the given servers. Every server hostname
// is resolved before NewClient returns; a failed resolution fails the
// construction.
func NewClient(ctx context.Context, servers Servers, config Config) (*Client, error) {
	serverList := servers.List()
	if len(serverList) == 0 {
		return nil, ErrNoServers
	}

	selectServer := config.SelectServer
	if selectServer == nil {
		selectServer = DefaultServerSelector
	}

	client := &Client{
		selectServer: selectServer,
		pools:        make([]*serverPool, 0, len(serverList)),
	}

	for _, addr := range serverList {
		sp, err := newServerPool(ctx, addr, config)
		if err != nil {
			client.Close()
			return nil, err
		}
		client.pools = append(client.pools, sp)
	}

	return client, nil
}

func newServerPool(ctx context.Context, addr string, config Config) (*serverPool, error) {
	host, port, err := splitServerAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("redis: server %q: %w", addr, err)
	}

	pool, err := NewConnectionPool(ctx, host, port, config.PoolConfig)
	if err != nil {
		return nil, fmt.Errorf("redis: server %q: %w", addr, err)
	}

	sp := &serverPool{addr: addr, pool: pool}
	if config.NewCircuitBreaker != nil {
		sp.circuitBreaker = config.NewCircuitBreaker(addr)
	}
	return sp, nil
}

// Close closes the idle connections of all servers and stops the address
// refresh. In-flight requests complete; their connections are closed on
// release.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	for _, sp := range c.pools {
		sp.pool.Close()
	}
}

func (c *Client) poolForKey(key string) *serverPool {
	if len(c.pools) == 1 {
		return c.pools[0]
	}
	return c.pools[c.selectServer(key, len(c.pools))]
}

// execRequest runs one request-response cycle on the server pool.
// If a circuit breaker is configured for the server pool, the request is wrapped with it.
func (c *Client) execRequest(ctx context.Context, sp *serverPool, encode func(w io.Writer) error) (resp.Value, error) {
	if c.closed.Load() {
		c.stats.recordError()
		return resp.Value{}, ErrClientClosed
	}

	var v resp.Value
	var err error
	if sp.circuitBreaker != nil {
		v, err = sp.circuitBreaker.Execute(func() (resp.Value, error) {
			return sp.pool.Execute(ctx, encode)
		})
	} else {
		v, err = sp.pool.Execute(ctx, encode)
	}

	if err != nil {
		c.stats.recordError()
		return resp.Value{}, err
	}
	return v, nil
}

// Get retrieves a single item. A missing key is not an error: the item
// has Found set to false.
func (c *Client) Get(ctx context.Context, key string) (Item, error) {
	v, err := c.execRequest(ctx, c.poolForKey(key), func(w io.Writer) error {
		return resp.WriteGet(w, []byte(key))
	})
	if err != nil {
		return Item{}, err
	}

	switch {
	case v.IsNull():
		c.stats.recordGet(false)
		return Item{Key: key, Found: false}, nil
	case v.Kind == resp.KindBulkString:
		c.stats.recordGet(true)
		return Item{Key: key, Value: v.Data, Found: true}, nil
	case v.IsError():
		c.stats.recordError()
		return Item{}, &resp.ServerError{Message: string(v.Data)}
	default:
		c.stats.recordError()
		return Item{}, fmt.Errorf("%w to GET: %s", ErrUnexpectedReply, v)
	}
}

// Set stores an item. A positive TTL is rounded up to whole seconds;
// NoTTL stores the item without expiration.
func (c *Client) Set(ctx context.Context, item Item) error {
	key := []byte(item.Key)
	v, err := c.execRequest(ctx, c.poolForKey(item.Key), func(w io.Writer) error {
		if item.TTL > 0 {
			return resp.WriteSet(w, key, item.Value, ttlSeconds(item.TTL))
		}
		return resp.WriteCommand(w, []byte("SET"), key, item.Value)
	})
	if err != nil {
		return err
	}

	switch {
	case v.IsOK():
		c.stats.recordSet()
		return nil
	case v.IsError():
		c.stats.recordError()
		return &resp.ServerError{Message: string(v.Data)}
	default:
		c.stats.recordError()
		return fmt.Errorf("%w to SET: %s", ErrUnexpectedReply, v)
	}
}

func ttlSeconds(ttl time.Duration) int64 {
	return int64((ttl + time.Second - 1) / time.Second)
}

// GetString returns the value of key as a string, and whether it exists.
func (c *Client) GetString(ctx context.Context, key string) (string, bool, error) {
	item, err := c.Get(ctx, key)
	if err != nil || !item.Found {
		return "", false, err
	}
	return string(item.Value), true, nil
}

// SetString stores a string value for key.
func (c *Client) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.Set(ctx, Item{Key: key, Value: []byte(value), TTL: ttl})
}

// Do sends an arbitrary command. The server is selected by the first
// argument after the command name. An error reply is returned both as the
// value and as a *resp.ServerError.
func (c *Client) Do(ctx context.Context, args ...string) (resp.Value, error) {
	if len(args) == 0 {
		return resp.Value{}, errors.New("redis: empty command")
	}

	var key string
	if len(args) > 1 {
		key = args[1]
	}

	return c.do(ctx, c.poolForKey(key), args)
}

func (c *Client) do(ctx context.Context, sp *serverPool, args []string) (resp.Value, error) {
	bargs := make([][]byte, len(args))
	for i, a := range args {
		bargs[i] = []byte(a)
	}

	v, err := c.execRequest(ctx, sp, func(w io.Writer) error {
		return resp.WriteCommand(w, bargs...)
	})
	if err != nil {
		return resp.Value{}, err
	}

	c.stats.recordCommand()
	if v.IsError() {
		c.stats.recordError()
		return v, &resp.ServerError{Message: string(v.Data)}
	}
	return v, nil
}

// Ping sends PING to every server.
func (c *Client) Ping(ctx context.Context) error {
	var errs []error
	for _, sp := range c.pools {
		v, err := c.do(ctx, sp, []string{"PING"})
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", sp.addr, err))
		case v.Kind != resp.KindSimpleString || string(v.Data) != "PONG":
			errs = append(errs, fmt.Errorf("%s: %w to PING: %s", sp.addr, ErrUnexpectedReply, v))
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// ServerPoolStats contains stats for a single server pool
type ServerPoolStats struct {
	Addr                 string
	Addresses            []string
	PoolStats            PoolStats
	CircuitBreakerState  gobreaker.State
	CircuitBreakerCounts gobreaker.Counts
}

// AllPoolStats returns stats for all server pools
func (c *Client) AllPoolStats() []ServerPoolStats {
	stats := make([]ServerPoolStats, 0, len(c.pools))
	for _, sp := range c.pools {
		s := ServerPoolStats{
			Addr:      sp.addr,
			Addresses: sp.pool.Addresses(),
			PoolStats: sp.pool.Stats(),
		}
		if sp.circuitBreaker != nil {
			s.CircuitBreakerState = sp.circuitBreaker.State()
			s.CircuitBreakerCounts = sp.circuitBreaker.Counts()
		}
		stats = append(stats, s)
	}
	return stats
}
