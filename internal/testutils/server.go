package testutils

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pior/redis/resp"
)

// Server is an in-memory server speaking the wire protocol on a loopback
// TCP port. It knows PING, GET, SET (with EX), DEL and ECHO.
type Server struct {
	ln net.Listener

	mu      sync.Mutex
	data    map[string]entry
	conns   map[net.Conn]struct{}
	trailer []byte
	hangup  bool
	delay   time.Duration

	accepted atomic.Int64
	commands atomic.Int64
	wg       sync.WaitGroup
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewServer starts a server. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{
		ln:    ln,
		data:  make(map[string]entry),
		conns: make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()

	t.Cleanup(s.Close)
	return s
}

// Addr returns the listening address as host:port.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the listening IP.
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int64 {
	return s.accepted.Load()
}

// Commands returns the number of commands served so far.
func (s *Server) Commands() int64 {
	return s.commands.Load()
}

// SetTrailer makes the server send b after every reply.
func (s *Server) SetTrailer(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trailer = b
}

// SetHangup makes the server close each connection after its reply.
func (s *Server) SetHangup(hangup bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hangup = hangup
}

// SetDelay makes the server wait before each reply.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Store sets a key directly.
func (s *Server) Store(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{value: value}
}

// Lookup reads a key directly, ignoring expiration.
func (s *Server) Lookup(key string) ([]byte, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	return e.value, e.expiresAt, ok
}

// DropConnections closes the server side of every open connection.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// Close stops the server and closes its connections.
func (s *Server) Close() {
	s.ln.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.accepted.Add(1)

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	r := resp.NewReader(conn)
	for {
		cmd, err := r.ReadValue()
		if err != nil {
			return
		}
		s.commands.Add(1)

		s.mu.Lock()
		reply := s.exec(cmd)
		trailer, hangup, delay := s.trailer, s.hangup, s.delay
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}

		out := resp.AppendValue(nil, reply)
		out = append(out, trailer...)
		if _, err := conn.Write(out); err != nil || hangup {
			return
		}
	}
}

// exec runs one command. Called with s.mu held.
func (s *Server) exec(cmd resp.Value) resp.Value {
	if cmd.Kind != resp.KindArray || len(cmd.Elems) == 0 {
		return resp.ErrorValue("ERR protocol error: expected array of bulk strings")
	}
	args := make([]string, len(cmd.Elems))
	for i, e := range cmd.Elems {
		if e.Kind != resp.KindBulkString || e.Null {
			return resp.ErrorValue("ERR protocol error: expected bulk string")
		}
		args[i] = string(e.Data)
	}

	name := strings.ToUpper(args[0])
	switch {
	case name == "PING" && len(args) == 1:
		return resp.SimpleString("PONG")
	case name == "ECHO" && len(args) == 2:
		return resp.BulkString([]byte(args[1]))
	case name == "GET" && len(args) == 2:
		e, ok := s.data[args[1]]
		if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
			return resp.NullBulkString()
		}
		return resp.BulkString(e.value)
	case name == "SET" && len(args) == 3:
		s.data[args[1]] = entry{value: []byte(args[2])}
		return resp.SimpleString("OK")
	case name == "SET" && len(args) == 5 && strings.ToUpper(args[3]) == "EX":
		secs, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil || secs <= 0 {
			return resp.ErrorValue("ERR invalid expire time in 'set' command")
		}
		s.data[args[1]] = entry{
			value:     []byte(args[2]),
			expiresAt: time.Now().Add(time.Duration(secs) * time.Second),
		}
		return resp.SimpleString("OK")
	case name == "DEL" && len(args) >= 2:
		var n int64
		for _, k := range args[1:] {
			if _, ok := s.data[k]; ok {
				delete(s.data, k)
				n++
			}
		}
		return resp.Integer(n)
	default:
		return resp.ErrorValue("ERR unknown command '" + args[0] + "'")
	}
}
