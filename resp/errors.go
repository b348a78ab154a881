package resp

import (
	"errors"
	"fmt"
)

// Error types for protocol operations.
// They tell the caller whether the connection that produced them may be
// reused (see ShouldCloseConnection).

var (
	// ErrEmptyInput is returned when the first feed of a decode carries no bytes.
	ErrEmptyInput = errors.New("resp: empty input at start of reply")

	// ErrIncomplete is returned by Decoder.Value before a value is complete.
	ErrIncomplete = errors.New("resp: value is not complete")

	// ErrValueTaken is returned by Decoder.Value when the value was already retrieved.
	ErrValueTaken = errors.New("resp: value already retrieved")
)

// ProtocolError reports a malformed frame: unknown type marker, invalid
// size field, missing terminator or a stream closed mid-frame.
//
// Connection handling: CLOSE, the framing position is lost.
type ProtocolError struct {
	Message string
	Err     error // Underlying error, if any
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "resp: protocol error: " + e.Message + ": " + e.Err.Error()
	}
	return "resp: protocol error: " + e.Message
}

// Unwrap returns the underlying error for error chain inspection
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - protocol errors corrupt the stream position
func (e *ProtocolError) ShouldCloseConnection() bool {
	return true
}

// ServerError is an error reply (-ERR ...) sent by the server.
// The reply was framed correctly, so the connection stays usable.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "resp: server error: " + e.Message
}

// ShouldCloseConnection returns false - error replies don't corrupt protocol state
func (e *ServerError) ShouldCloseConnection() bool {
	return false
}

// ConnectionError wraps I/O errors from dial, read and write operations.
//
// Connection handling: the connection is broken, CLOSE it.
type ConnectionError struct {
	Op  string // Operation that failed (dial, read, write)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("resp: connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by errors that know whether the
// connection they came from must be closed.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err requires closing the connection.
//
// Returns false for nil and ServerError, true for ProtocolError,
// ConnectionError and any error of unknown type (context cancellation
// included: the framing position is undefined after an interrupted read).
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	// Unknown error type - be conservative and close connection
	return true
}
