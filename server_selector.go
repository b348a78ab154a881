package redis

import (
	"github.com/pior/redis/internal/jump"
	"github.com/zeebo/xxh3"
)

// ServerSelector picks which server to use for a given key.
// It receives the key and the number of servers and returns an index.
type ServerSelector func(key string, serverCount int) int

// DefaultServerSelector uses Jump Hash over xxh3 for consistent server
// selection: few keys move when a server is added or removed.
func DefaultServerSelector(key string, serverCount int) int {
	return jump.Hash(xxh3.HashString(key), serverCount)
}

// staticSelector is used in tests to always select a specific server.
func staticSelector(index int) ServerSelector {
	return func(key string, serverCount int) int {
		return index % serverCount
	}
}
