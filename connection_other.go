//go:build !unix

package redis

import "net"

// streamIdle cannot peek at the socket on this platform. Only bytes
// already buffered by the reader are detected.
func streamIdle(net.Conn) bool {
	return true
}
