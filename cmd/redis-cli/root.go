package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pior/redis"
	"github.com/spf13/cobra"
)

// cli holds the persistent flags shared by every subcommand.
type cli struct {
	cfgFile string
	verbose bool
	flags   profile
}

func newRootCmd() *cobra.Command {
	c := &cli{flags: defaultProfile()}

	rootCmd := &cobra.Command{
		Use:   "redis-cli",
		Short: "Pooled client for a RESP key-value server",
		Long: `redis-cli talks to one or more servers through the pooled client.

Keys are spread across servers with jump hashing. Connections are reused
for their lifespan (plus up to 30% jitter), then replaced.

Settings come from flags, optionally on top of a TOML or YAML profile:

  servers = ["cache-1:6379", "cache-2:6379"]
  lifespan = "3m"
  timeout = "5s"`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "profile file (.toml, .yaml or .yml)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	pf.StringSliceVarP(&c.flags.Servers, "server", "s", c.flags.Servers, "server address host:port (repeatable)")
	pf.DurationVar(&c.flags.Lifespan, "lifespan", c.flags.Lifespan, "connection lifespan")
	pf.Int32Var(&c.flags.MaxIdle, "max-idle", c.flags.MaxIdle, "idle connections kept per server")
	pf.DurationVar(&c.flags.MaxIdleTime, "max-idle-time", c.flags.MaxIdleTime, "close connections idle for longer, 0 for no limit")
	pf.DurationVar(&c.flags.HealthCheckInterval, "health-check-interval", c.flags.HealthCheckInterval, "check idle connections this often, 0 to disable")
	pf.DurationVar(&c.flags.DialTimeout, "dial-timeout", c.flags.DialTimeout, "connection establishment timeout")
	pf.DurationVar(&c.flags.Timeout, "timeout", c.flags.Timeout, "per-command timeout")
	pf.StringVar(&c.flags.Pool, "pool", c.flags.Pool, "idle pool implementation: channel or puddle")
	pf.BoolVar(&c.flags.CircuitBreaker, "circuit-breaker", c.flags.CircuitBreaker, "wrap each server in a circuit breaker")

	rootCmd.AddCommand(c.getCmd(), c.setCmd(), c.pingCmd(), c.benchCmd())
	return rootCmd
}

func (c *cli) newLogger() *slog.Logger {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// settings merges the profile file, if any, with the flags set on the
// command line. Flags win.
func (c *cli) settings(cmd *cobra.Command) (profile, error) {
	p := defaultProfile()
	if c.cfgFile != "" {
		loaded, err := loadProfile(c.cfgFile)
		if err != nil {
			return profile{}, err
		}
		p = loaded
	}

	fs := cmd.Flags()
	if fs.Changed("server") {
		p.Servers = c.flags.Servers
	}
	if fs.Changed("lifespan") {
		p.Lifespan = c.flags.Lifespan
	}
	if fs.Changed("max-idle") {
		p.MaxIdle = c.flags.MaxIdle
	}
	if fs.Changed("max-idle-time") {
		p.MaxIdleTime = c.flags.MaxIdleTime
	}
	if fs.Changed("health-check-interval") {
		p.HealthCheckInterval = c.flags.HealthCheckInterval
	}
	if fs.Changed("dial-timeout") {
		p.DialTimeout = c.flags.DialTimeout
	}
	if fs.Changed("timeout") {
		p.Timeout = c.flags.Timeout
	}
	if fs.Changed("pool") {
		p.Pool = c.flags.Pool
	}
	if fs.Changed("circuit-breaker") {
		p.CircuitBreaker = c.flags.CircuitBreaker
	}
	return p, p.validate()
}

// connect builds a client from the command's settings.
func (c *cli) connect(cmd *cobra.Command) (*redis.Client, profile, error) {
	p, err := c.settings(cmd)
	if err != nil {
		return nil, profile{}, err
	}

	logger := c.newLogger()
	slog.SetDefault(logger)

	config := redis.Config{
		PoolConfig: redis.PoolConfig{
			Lifespan:            p.Lifespan,
			MaxIdle:             p.MaxIdle,
			MaxIdleTime:         p.MaxIdleTime,
			HealthCheckInterval: p.HealthCheckInterval,
			DialTimeout:         p.DialTimeout,
			Logger:              logger,
		},
	}
	if p.Pool == "puddle" {
		config.Pool = redis.NewPuddlePool
	}
	if p.CircuitBreaker {
		config.NewCircuitBreaker = redis.NewCircuitBreakerConfig(3, 10*time.Second, 5*time.Second)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), p.DialTimeout)
	defer cancel()

	client, err := redis.NewClient(ctx, redis.NewStaticServers(p.Servers...), config)
	if err != nil {
		return nil, profile{}, fmt.Errorf("connecting: %w", err)
	}

	logger.Debug("client ready", "servers", p.Servers, "lifespan", p.Lifespan, "pool", p.Pool)
	return client, p, nil
}

// commandContext bounds a single command by the configured timeout.
func commandContext(cmd *cobra.Command, p profile) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), p.Timeout)
}
