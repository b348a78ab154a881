package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pior/redis"
	"github.com/pior/redis/promexporter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// keyValueStore is the part of the client the benchmark drives.
type keyValueStore interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

type benchOptions struct {
	Keys     int
	Workers  int
	TTL      time.Duration
	Timeout  time.Duration
	Prefix   string
	Progress int
}

type benchResult struct {
	Pairs   int64
	Misses  int64
	Elapsed time.Duration
	Prefix  string
}

func (r benchResult) opsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(2*r.Pairs) / r.Elapsed.Seconds()
}

func (c *cli) benchCmd() *cobra.Command {
	opts := benchOptions{Keys: 10000, Workers: 1, TTL: 10 * time.Second, Progress: 1000}
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Write then read back a series of keys",
		Long: `bench writes "key<i>" = "value<i>" under a random prefix and reads each
key back right away, checking the value. With --metrics-addr the client
and pool counters are served at /metrics while it runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, p, err := c.connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if metricsAddr != "" {
				exporter := promexporter.NewExporter(client)
				go func() {
					if err := exporter.ListenAndServe(metricsAddr); err != nil {
						slog.Error("metrics server stopped", "addr", metricsAddr, "error", err)
					}
				}()
				slog.Info("serving metrics", "addr", metricsAddr)
			}

			opts.Timeout = p.Timeout
			result, err := runBench(cmd.Context(), client, opts, cmd.ErrOrStderr())
			printBenchResult(cmd.OutOrStdout(), result, client)
			return err
		},
	}

	fs := cmd.Flags()
	fs.IntVarP(&opts.Keys, "keys", "n", opts.Keys, "number of set/get pairs")
	fs.IntVarP(&opts.Workers, "workers", "w", opts.Workers, "concurrent workers")
	fs.DurationVar(&opts.TTL, "ttl", opts.TTL, "expiry of the written keys")
	fs.IntVar(&opts.Progress, "progress", opts.Progress, "report every N pairs per worker, 0 to disable")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

// runBench spreads the keys over the workers. The first failing operation
// stops every worker.
func runBench(ctx context.Context, store keyValueStore, opts benchOptions, progress io.Writer) (benchResult, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Prefix == "" {
		opts.Prefix = uuid.NewString()
	}

	var pairs, misses atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()

	for w := range opts.Workers {
		g.Go(func() error {
			done := 0
			for i := w; i < opts.Keys; i += opts.Workers {
				if err := ctx.Err(); err != nil {
					return err
				}

				found, err := benchPair(ctx, store, opts, i)
				if err != nil {
					return err
				}
				if !found {
					misses.Add(1)
				}
				pairs.Add(1)

				done++
				if opts.Progress > 0 && done%opts.Progress == 0 {
					fmt.Fprintf(progress, "worker %d: %d pairs\n", w, done)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	return benchResult{
		Pairs:   pairs.Load(),
		Misses:  misses.Load(),
		Elapsed: time.Since(start),
		Prefix:  opts.Prefix,
	}, err
}

func benchPair(ctx context.Context, store keyValueStore, opts benchOptions, i int) (bool, error) {
	key := opts.Prefix + ":key" + strconv.Itoa(i)
	value := "value" + strconv.Itoa(i)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := store.SetString(ctx, key, value, opts.TTL); err != nil {
		return false, fmt.Errorf("set %s: %w", key, err)
	}

	got, found, err := store.GetString(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if found && got != value {
		return false, fmt.Errorf("get %s: got %q, want %q", key, got, value)
	}
	return found, nil
}

func printBenchResult(w io.Writer, r benchResult, client *redis.Client) {
	fmt.Fprintf(w, "prefix:   %s\n", r.Prefix)
	fmt.Fprintf(w, "pairs:    %d (%d misses)\n", r.Pairs, r.Misses)
	fmt.Fprintf(w, "elapsed:  %s\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "ops/sec:  %.0f\n", r.opsPerSecond())

	for _, s := range client.AllPoolStats() {
		ps := s.PoolStats
		fmt.Fprintf(w, "server %s: created=%d destroyed=%d expired=%d live=%d idle=%d breaker=%s\n",
			s.Addr, ps.CreatedConns, ps.DestroyedConns, ps.ExpiredConns, ps.LiveConns, ps.IdleConns, s.CircuitBreakerState)
	}
}
