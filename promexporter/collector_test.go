package promexporter

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pior/redis"
	"github.com/pior/redis/internal/testutils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	client redis.ClientStats
	pools  []redis.ServerPoolStats
}

func (f *fakeSource) Stats() redis.ClientStats              { return f.client }
func (f *fakeSource) AllPoolStats() []redis.ServerPoolStats { return f.pools }

func TestCollector_ClientMetrics(t *testing.T) {
	source := &fakeSource{client: redis.ClientStats{Gets: 10, GetHits: 7, Sets: 4, Commands: 2, Errors: 3}}

	expected := `
# HELP redis_client_errors_total Total errors across all operations.
# TYPE redis_client_errors_total counter
redis_client_errors_total 3
# HELP redis_client_get_hits_total Get operations that found the key.
# TYPE redis_client_get_hits_total counter
redis_client_get_hits_total 7
# HELP redis_client_operations_total Total number of client operations.
# TYPE redis_client_operations_total counter
redis_client_operations_total{op="command"} 2
redis_client_operations_total{op="get"} 10
redis_client_operations_total{op="set"} 4
`
	err := testutil.CollectAndCompare(NewCollector(source), strings.NewReader(expected),
		"redis_client_errors_total", "redis_client_get_hits_total", "redis_client_operations_total")
	require.NoError(t, err)
}

func TestCollector_PoolMetrics(t *testing.T) {
	source := &fakeSource{pools: []redis.ServerPoolStats{
		{
			Addr:                "cache-1:6379",
			Addresses:           []string{"10.0.0.1", "10.0.0.2"},
			PoolStats:           redis.PoolStats{LiveConns: 5, TotalConns: 5, ActiveConns: 2, IdleConns: 3},
			CircuitBreakerState: gobreaker.StateOpen,
		},
		{
			Addr:      "cache-2:6379",
			Addresses: []string{"10.0.1.1"},
			PoolStats: redis.PoolStats{LiveConns: 1, TotalConns: 1, IdleConns: 1},
		},
	}}

	expected := `
# HELP redis_circuit_breaker_state Circuit breaker state (0=closed, 1=half-open, 2=open).
# TYPE redis_circuit_breaker_state gauge
redis_circuit_breaker_state{server="cache-1:6379"} 2
redis_circuit_breaker_state{server="cache-2:6379"} 0
# HELP redis_pool_resolved_addresses Number of addresses the server hostname currently resolves to.
# TYPE redis_pool_resolved_addresses gauge
redis_pool_resolved_addresses{server="cache-1:6379"} 2
redis_pool_resolved_addresses{server="cache-2:6379"} 1
`
	err := testutil.CollectAndCompare(NewCollector(source), strings.NewReader(expected),
		"redis_circuit_breaker_state", "redis_pool_resolved_addresses")
	require.NoError(t, err)

	// 5 client series plus 13 per server.
	require.Equal(t, 5+2*13, testutil.CollectAndCount(NewCollector(source)))
}

func TestCollector_Lint(t *testing.T) {
	problems, err := testutil.CollectAndLint(NewCollector(&fakeSource{}))
	require.NoError(t, err)
	require.Empty(t, problems)
}

func TestExporter_Handler(t *testing.T) {
	s := testutils.NewServer(t)
	client, err := redis.NewClient(context.Background(), redis.NewStaticServers(s.Addr()), redis.Config{})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SetString(context.Background(), "k", "v", time.Minute))

	srv := httptest.NewServer(NewExporter(client).Handler())
	defer srv.Close()

	res, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `redis_client_operations_total{op="set"} 1`)
	require.Contains(t, string(body), `redis_pool_connections{server="`+s.Addr()+`",state="live"} 1`)
	require.Contains(t, string(body), "go_goroutines")
}
