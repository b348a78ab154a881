package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRefreshInterval is how often an AddressRotator resolves its
// hostname again.
const DefaultRefreshInterval = time.Minute

const resolveTimeout = 10 * time.Second

// rotatorStopTimeout bounds how long Stop waits for the refresh loop.
var rotatorStopTimeout = 3 * time.Second

var ErrNoAddresses = errors.New("redis: hostname resolved to no addresses")

// Resolver resolves a hostname to its addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type addressSet struct {
	addrs []string
}

// AddressRotator keeps the addresses of a hostname current and picks one
// at random for each new connection.
//
// The hostname is resolved once at construction, then again every refresh
// interval by a background goroutine. A failed or empty refresh keeps the
// previous addresses. Readers never see a partially updated set.
type AddressRotator struct {
	host     string
	resolver Resolver
	interval time.Duration
	logger   *slog.Logger

	current atomic.Pointer[addressSet]

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type RotatorOption func(*AddressRotator)

// WithResolver replaces net.DefaultResolver.
func WithResolver(r Resolver) RotatorOption {
	return func(ar *AddressRotator) {
		if r != nil {
			ar.resolver = r
		}
	}
}

// WithRefreshInterval replaces DefaultRefreshInterval.
func WithRefreshInterval(d time.Duration) RotatorOption {
	return func(ar *AddressRotator) {
		if d > 0 {
			ar.interval = d
		}
	}
}

// WithLogger sets the logger for refresh failures.
func WithLogger(l *slog.Logger) RotatorOption {
	return func(ar *AddressRotator) {
		if l != nil {
			ar.logger = l
		}
	}
}

// NewAddressRotator resolves host and starts the refresh loop. It fails
// when the initial resolution fails or yields no address. An IP literal
// resolves to itself.
func NewAddressRotator(ctx context.Context, host string, opts ...RotatorOption) (*AddressRotator, error) {
	r := &AddressRotator{
		host:     host,
		resolver: net.DefaultResolver,
		interval: DefaultRefreshInterval,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	addrs, err := r.resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis: resolving %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoAddresses, host)
	}
	r.current.Store(&addressSet{addrs: addrs})

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	go r.refreshLoop(loopCtx)

	return r, nil
}

// Host returns the hostname being resolved.
func (r *AddressRotator) Host() string {
	return r.host
}

// Pick returns one of the current addresses, chosen uniformly at random.
func (r *AddressRotator) Pick() string {
	addrs := r.current.Load().addrs
	if len(addrs) == 1 {
		return addrs[0]
	}
	return addrs[rand.IntN(len(addrs))]
}

// Addresses returns a copy of the current address set.
func (r *AddressRotator) Addresses() []string {
	return slices.Clone(r.current.Load().addrs)
}

// Stop ends the refresh loop. It waits at most a few seconds for an
// in-flight resolution to finish. Calling Stop more than once is safe.
func (r *AddressRotator) Stop() {
	r.stopOnce.Do(func() {
		r.cancel()

		timer := time.NewTimer(rotatorStopTimeout)
		defer timer.Stop()

		select {
		case <-r.done:
		case <-timer.C:
			r.logger.Warn("redis: address refresh did not stop in time", "host", r.host)
		}
	})
}

func (r *AddressRotator) refreshLoop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// refresh resolves the hostname and publishes the result. The previous
// set is kept on failure.
func (r *AddressRotator) refresh(ctx context.Context) {
	addrs, err := r.resolve(ctx)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		r.logger.LogAttrs(ctx, slog.LevelError, "redis: address refresh failed, keeping previous addresses",
			slog.String("host", r.host),
			slog.Any("error", err),
		)
	case len(addrs) == 0:
		r.logger.LogAttrs(ctx, slog.LevelWarn, "redis: address refresh returned no address, keeping previous addresses",
			slog.String("host", r.host),
		)
	default:
		prev := r.current.Swap(&addressSet{addrs: addrs})
		if !slices.Equal(prev.addrs, addrs) {
			r.logger.LogAttrs(ctx, slog.LevelDebug, "redis: addresses changed",
				slog.String("host", r.host),
				slog.Any("addresses", addrs),
			)
		}
	}
}

func (r *AddressRotator) resolve(ctx context.Context) ([]string, error) {
	if ip := net.ParseIP(r.host); ip != nil {
		return []string{r.host}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	addrs, err := r.resolver.LookupHost(ctx, r.host)
	if err != nil {
		return nil, err
	}
	return addrs, nil
}
