package resp

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"sync"
)

// Buffer pool for building requests
var bufferPool = sync.Pool{
	New: func() any {
		// Typical request is well under 256 bytes
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

// Buffers that grew past this size are dropped instead of pooled.
const maxPooledBuffer = 64 * 1024

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

var (
	getHeader = []byte("*2\r\n$3\r\nGET\r\n")
	setHeader = []byte("*5\r\n$3\r\nSET\r\n")
	exOption  = []byte("$2\r\nEX\r\n")
)

// AppendBulkString appends b encoded as a bulk string: $<len>\r\n<b>\r\n
func AppendBulkString(dst, b []byte) []byte {
	dst = append(dst, MarkerBulkString)
	dst = strconv.AppendInt(dst, int64(len(b)), 10)
	dst = append(dst, CRLF...)
	dst = append(dst, b...)
	return append(dst, CRLF...)
}

// AppendBulkInt appends n rendered in decimal as a bulk string.
func AppendBulkInt(dst []byte, n int64) []byte {
	var tmp [20]byte
	return AppendBulkString(dst, strconv.AppendInt(tmp[:0], n, 10))
}

// AppendGet appends a GET <key> command.
func AppendGet(dst, key []byte) []byte {
	dst = append(dst, getHeader...)
	return AppendBulkString(dst, key)
}

// AppendSet appends a SET <key> <value> EX <ttl> command.
func AppendSet(dst, key, value []byte, ttlSeconds int64) []byte {
	dst = append(dst, setHeader...)
	dst = AppendBulkString(dst, key)
	dst = AppendBulkString(dst, value)
	dst = append(dst, exOption...)
	return AppendBulkInt(dst, ttlSeconds)
}

// AppendCommand appends an array of bulk strings, the generic command form.
func AppendCommand(dst []byte, args ...[]byte) []byte {
	dst = append(dst, MarkerArray)
	dst = strconv.AppendInt(dst, int64(len(args)), 10)
	dst = append(dst, CRLF...)
	for _, a := range args {
		dst = AppendBulkString(dst, a)
	}
	return dst
}

// AppendValue appends the wire encoding of v.
func AppendValue(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindBulkString:
		if v.Null {
			return append(dst, "$-1\r\n"...)
		}
		return AppendBulkString(dst, v.Data)
	case KindArray:
		if v.Null {
			return append(dst, "*-1\r\n"...)
		}
		dst = append(dst, MarkerArray)
		dst = strconv.AppendInt(dst, int64(len(v.Elems)), 10)
		dst = append(dst, CRLF...)
		for _, e := range v.Elems {
			dst = AppendValue(dst, e)
		}
		return dst
	default:
		dst = append(dst, byte(v.Kind))
		dst = append(dst, v.Data...)
		return append(dst, CRLF...)
	}
}

// WriteGet writes a GET command to w.
func WriteGet(w io.Writer, key []byte) error {
	return write(w, func(dst []byte) []byte { return AppendGet(dst, key) })
}

// WriteSet writes a SET command with an expiry in seconds to w.
func WriteSet(w io.Writer, key, value []byte, ttlSeconds int64) error {
	return write(w, func(dst []byte) []byte { return AppendSet(dst, key, value, ttlSeconds) })
}

// WriteCommand writes a generic command to w.
func WriteCommand(w io.Writer, args ...[]byte) error {
	return write(w, func(dst []byte) []byte { return AppendCommand(dst, args...) })
}

// WriteValue writes the encoding of v to w.
func WriteValue(w io.Writer, v Value) error {
	return write(w, func(dst []byte) []byte { return AppendValue(dst, v) })
}

// write encodes a frame into a pooled buffer and sends it in a single
// Write. A bufio.Writer is flushed so the frame reaches the wire.
func write(w io.Writer, encode func([]byte) []byte) error {
	buf := getBuffer()
	defer putBuffer(buf)

	b := encode(buf.AvailableBuffer())
	if bw, ok := w.(*bufio.Writer); ok {
		if _, err := bw.Write(b); err != nil {
			return err
		}
		return bw.Flush()
	}

	_, err := w.Write(b)
	return err
}
