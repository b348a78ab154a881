package redis

import (
	"fmt"
	"net"
	"slices"
	"strconv"
)

// Servers provides the list of server addresses, as host:port.
type Servers interface {
	List() []string
}

type staticServers []string

// NewStaticServers returns a fixed server list.
func NewStaticServers(addrs ...string) Servers {
	return staticServers(slices.Clone(addrs))
}

func (s staticServers) List() []string {
	return s
}

// splitServerAddr splits host:port. The host may be a hostname or an IP
// literal.
func splitServerAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return host, port, nil
}
