package redis

import (
	"context"
	"errors"
	"time"

	"github.com/pior/redis/resp"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards the requests to one server.
// *gobreaker.CircuitBreaker[resp.Value] implements it.
type CircuitBreaker interface {
	Execute(req func() (resp.Value, error)) (resp.Value, error)
	State() gobreaker.State
	Counts() gobreaker.Counts
}

// NewCircuitBreakerConfig returns a function that creates circuit breakers for servers.
// This is a helper for common use cases.
//
// The breaker opens when at least 3 requests were made in the interval and
// 60% of them failed. Error replies from the server and cancelled requests
// are not failures.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}
		return gobreaker.NewCircuitBreaker[resp.Value](settings)
	}
}
