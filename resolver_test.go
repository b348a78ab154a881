package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu    sync.Mutex
	addrs []string
	err   error
	calls int
	block chan struct{} // when set, lookups wait on it and ignore ctx
}

func (r *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	r.mu.Lock()
	r.calls++
	addrs, err, block := r.addrs, r.err, r.block
	r.mu.Unlock()

	if block != nil {
		<-block
	}
	return addrs, err
}

func (r *fakeResolver) set(addrs []string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs, r.err = addrs, err
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestRotator(t *testing.T, res Resolver, interval time.Duration) *AddressRotator {
	t.Helper()
	r, err := NewAddressRotator(context.Background(), "cache.example", WithResolver(res), WithRefreshInterval(interval), WithLogger(discardLogger))
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func TestAddressRotator_InitialResolution(t *testing.T) {
	res := &fakeResolver{addrs: []string{"10.0.0.1", "10.0.0.2"}}
	r := newTestRotator(t, res, time.Hour)

	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, r.Addresses())
	require.Equal(t, "cache.example", r.Host())
	require.Equal(t, 1, res.callCount())
}

func TestAddressRotator_IPLiteral(t *testing.T) {
	res := &fakeResolver{err: errors.New("must not be called")}

	for _, host := range []string{"127.0.0.1", "::1"} {
		r, err := NewAddressRotator(context.Background(), host, WithResolver(res), WithLogger(discardLogger))
		require.NoError(t, err)
		require.Equal(t, host, r.Pick())
		r.Stop()
	}
	require.Zero(t, res.callCount())
}

func TestAddressRotator_InitialFailure(t *testing.T) {
	lookupErr := errors.New("no such host")
	_, err := NewAddressRotator(context.Background(), "cache.example", WithResolver(&fakeResolver{err: lookupErr}))
	require.ErrorIs(t, err, lookupErr)
	require.ErrorContains(t, err, "cache.example")

	_, err = NewAddressRotator(context.Background(), "cache.example", WithResolver(&fakeResolver{}))
	require.ErrorIs(t, err, ErrNoAddresses)
}

func TestAddressRotator_PickSpreads(t *testing.T) {
	addrs := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	r := newTestRotator(t, &fakeResolver{addrs: addrs}, time.Hour)

	seen := map[string]int{}
	for range 3000 {
		seen[r.Pick()]++
	}

	require.Len(t, seen, 3)
	for _, addr := range addrs {
		require.Greater(t, seen[addr], 700, "address %s picked %d times", addr, seen[addr])
	}
}

func TestAddressRotator_Refresh(t *testing.T) {
	res := &fakeResolver{addrs: []string{"10.0.0.1"}}
	r := newTestRotator(t, res, 10*time.Millisecond)

	res.set([]string{"10.0.0.7", "10.0.0.8"}, nil)

	require.Eventually(t, func() bool {
		got := r.Addresses()
		return len(got) == 2 && got[0] == "10.0.0.7" && got[1] == "10.0.0.8"
	}, time.Second, 5*time.Millisecond)
}

func TestAddressRotator_FailedRefreshKeepsAddresses(t *testing.T) {
	res := &fakeResolver{addrs: []string{"10.0.0.1", "10.0.0.2"}}
	r := newTestRotator(t, res, 10*time.Millisecond)

	res.set(nil, errors.New("temporary failure"))
	calls := res.callCount()
	require.Eventually(t, func() bool { return res.callCount() >= calls+2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, r.Addresses())

	res.set([]string{}, nil)
	calls = res.callCount()
	require.Eventually(t, func() bool { return res.callCount() >= calls+2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, r.Addresses())
}

func TestAddressRotator_ConcurrentPick(t *testing.T) {
	res := &fakeResolver{addrs: []string{"10.0.0.1", "10.0.0.2"}}
	r := newTestRotator(t, res, time.Millisecond)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				assert.NotEmpty(t, r.Pick())
			}
		}()
		if i%2 == 0 {
			res.set([]string{"10.0.1.1", "10.0.1.2", "10.0.1.3"}, nil)
		} else {
			res.set([]string{"10.0.2.1"}, nil)
		}
	}
	wg.Wait()
}

func TestAddressRotator_Stop(t *testing.T) {
	res := &fakeResolver{addrs: []string{"10.0.0.1"}}
	r, err := NewAddressRotator(context.Background(), "cache.example", WithResolver(res), WithRefreshInterval(5*time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return res.callCount() >= 3 }, time.Second, time.Millisecond)

	r.Stop()
	r.Stop()

	calls := res.callCount()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, calls, res.callCount())

	require.Equal(t, "10.0.0.1", r.Pick(), "addresses stay readable after Stop")
}

func TestAddressRotator_StopIsBounded(t *testing.T) {
	prev := rotatorStopTimeout
	rotatorStopTimeout = 50 * time.Millisecond
	t.Cleanup(func() { rotatorStopTimeout = prev })

	res := &fakeResolver{addrs: []string{"10.0.0.1"}}
	r, err := NewAddressRotator(context.Background(), "cache.example", WithResolver(res), WithRefreshInterval(5*time.Millisecond), WithLogger(discardLogger))
	require.NoError(t, err)

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	res.mu.Lock()
	res.block = block
	res.mu.Unlock()

	calls := res.callCount()
	require.Eventually(t, func() bool { return res.callCount() > calls }, time.Second, time.Millisecond)

	start := time.Now()
	r.Stop()
	require.Less(t, time.Since(start), time.Second)
}
