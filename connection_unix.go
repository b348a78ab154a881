//go:build unix

package redis

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// streamIdle peeks at the socket without blocking. Pending bytes, end of
// stream or a socket error all mean the stream is not idle.
func streamIdle(conn net.Conn) bool {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return true
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false
	}

	idle := false
	var buf [1]byte
	err = raw.Read(func(fd uintptr) bool {
		n, _, rerr := unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case n > 0:
		case n == 0 && rerr == nil: // end of stream
		case errors.Is(rerr, unix.EAGAIN), errors.Is(rerr, unix.EWOULDBLOCK):
			idle = true
		}
		return true
	})
	return err == nil && idle
}
