package redis_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/pior/redis"
	"github.com/pior/redis/resp"
)

// Example demonstrates a single-server client with a connection lifespan.
func Example() {
	ctx := context.Background()

	client, err := redis.Dial(ctx, "localhost", 6379, 3*time.Minute)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if err := client.SetString(ctx, "greeting", "hello", 10*time.Second); err != nil {
		log.Printf("Set failed: %v", err)
		return
	}

	value, found, err := client.GetString(ctx, "greeting")
	if err != nil {
		log.Printf("Get failed: %v", err)
		return
	}
	fmt.Println(value, found)
}

// ExampleNewClient shards keys across servers, with a circuit breaker per
// server and a puddle-backed pool capping connections.
func ExampleNewClient() {
	ctx := context.Background()

	client, err := redis.NewClient(ctx, redis.NewStaticServers("cache-1:6379", "cache-2:6379"), redis.Config{
		PoolConfig: redis.PoolConfig{
			Lifespan: time.Minute,
			MaxIdle:  16,
			Pool:     redis.NewPuddlePool,
		},
		NewCircuitBreaker: redis.NewCircuitBreakerConfig(3, 10*time.Second, 5*time.Second),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	err = client.Set(ctx, redis.Item{Key: "user:1", Value: []byte(`{"name":"ada"}`), TTL: time.Hour})
	if err != nil {
		log.Printf("Set failed: %v", err)
		return
	}

	for _, s := range client.AllPoolStats() {
		fmt.Printf("%s: %d live connections, circuit %s\n", s.Addr, s.PoolStats.LiveConns, s.CircuitBreakerState)
	}
}

// ExampleConnectionPool uses a pool directly, marking the lease failing
// when the connection must not be reused.
func ExampleConnectionPool() {
	ctx := context.Background()

	pool, err := redis.NewConnectionPool(ctx, "localhost", 6379, redis.PoolConfig{})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	lease, err := pool.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer lease.Close()

	v, err := lease.Roundtrip(ctx, func(w io.Writer) error {
		return resp.WriteCommand(w, []byte("PING"))
	})
	if err != nil {
		log.Printf("PING failed: %v", err)
		return
	}
	fmt.Println(v, pool.TotalConnections())
}
