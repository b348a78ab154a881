package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pior/redis"
	"gopkg.in/yaml.v3"
)

// profile holds the connection settings of the CLI.
type profile struct {
	Servers             []string      `toml:"servers" yaml:"servers"`
	Lifespan            time.Duration `toml:"lifespan" yaml:"lifespan"`
	MaxIdle             int32         `toml:"max_idle" yaml:"max_idle"`
	MaxIdleTime         time.Duration `toml:"max_idle_time" yaml:"max_idle_time"`
	HealthCheckInterval time.Duration `toml:"health_check_interval" yaml:"health_check_interval"`
	DialTimeout         time.Duration `toml:"dial_timeout" yaml:"dial_timeout"`
	Timeout             time.Duration `toml:"timeout" yaml:"timeout"`
	Pool                string        `toml:"pool" yaml:"pool"`
	CircuitBreaker      bool          `toml:"circuit_breaker" yaml:"circuit_breaker"`
}

func defaultProfile() profile {
	return profile{
		Servers:     []string{"localhost:6379"},
		Lifespan:    redis.DefaultLifespan,
		MaxIdle:     redis.DefaultMaxIdle,
		DialTimeout: redis.DefaultDialTimeout,
		Timeout:     5 * time.Second,
		Pool:        "channel",
	}
}

// loadProfile reads a profile file. Settings missing from the file keep
// their default.
func loadProfile(path string) (profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	p := defaultProfile()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	case ".toml":
		err = toml.Unmarshal(data, &p)
	default:
		return profile{}, fmt.Errorf("unsupported profile format %q", filepath.Ext(path))
	}
	if err != nil {
		return profile{}, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return p, nil
}

func (p profile) validate() error {
	var errs []error
	if len(p.Servers) == 0 {
		errs = append(errs, errors.New("at least one server is required"))
	}
	if p.Lifespan <= 0 {
		errs = append(errs, fmt.Errorf("lifespan must be positive, got %s", p.Lifespan))
	}
	if p.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", p.Timeout))
	}
	if p.DialTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dial timeout must be positive, got %s", p.DialTimeout))
	}
	if p.MaxIdleTime < 0 || p.HealthCheckInterval < 0 {
		errs = append(errs, errors.New("max idle time and health check interval must not be negative"))
	}
	if p.Pool != "channel" && p.Pool != "puddle" {
		errs = append(errs, fmt.Errorf("unknown pool %q (want channel or puddle)", p.Pool))
	}
	return errors.Join(errs...)
}
