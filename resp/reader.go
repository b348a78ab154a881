package resp

import (
	"errors"
	"io"
)

const defaultReaderSize = 4096

// Reader drives a Decoder over an io.Reader.
//
// Bytes read from the source but not consumed by the decoder stay
// buffered and are delivered again on the next feed. New bytes are only
// read once the decoder has examined everything buffered.
type Reader struct {
	rd    io.Reader
	buf   []byte
	start int // first unconsumed byte
	end   int // end of valid data
}

// NewReader returns a Reader with a default buffer size.
func NewReader(rd io.Reader) *Reader {
	return NewReaderSize(rd, defaultReaderSize)
}

// NewReaderSize returns a Reader whose initial buffer holds size bytes.
func NewReaderSize(rd io.Reader, size int) *Reader {
	if size < 16 {
		size = 16
	}
	return &Reader{rd: rd, buf: make([]byte, size)}
}

// Buffered returns the number of bytes read from the source and not
// consumed by any decode. After a complete reply this should be zero: a
// server never sends unsolicited bytes to a client without pipelining.
func (r *Reader) Buffered() int {
	return r.end - r.start
}

// Discard drops buffered bytes.
func (r *Reader) Discard() {
	r.start, r.end = 0, 0
}

// ReadValue decodes one value using a fresh Decoder.
func (r *Reader) ReadValue() (Value, error) {
	var d Decoder
	return r.Decode(&d)
}

// Decode feeds d until it produces a complete value.
//
// Errors:
//   - *ProtocolError: malformed frame, or the stream ended mid-frame
//     (wrapping io.ErrUnexpectedEOF) or before the first byte (wrapping
//     ErrEmptyInput)
//   - *ConnectionError: the source failed
func (r *Reader) Decode(d *Decoder) (Value, error) {
	if r.start == r.end {
		if err := r.fill(); err != nil {
			return Value{}, r.readError(d, err)
		}
	}

	for {
		consumed, _, err := d.Feed(r.buf[r.start:r.end])
		if err != nil {
			return Value{}, err
		}
		r.start += consumed
		if r.start == r.end {
			r.start, r.end = 0, 0
		}

		if d.Done() {
			return d.Value()
		}

		// Everything buffered has been examined: wait for more.
		if err := r.fill(); err != nil {
			return Value{}, r.readError(d, err)
		}
	}
}

func (r *Reader) readError(d *Decoder, err error) error {
	if errors.Is(err, io.EOF) {
		if !d.Started() && r.start == r.end {
			_, _, ferr := d.Feed(nil)
			return ferr
		}
		return &ProtocolError{Message: "stream closed mid-frame", Err: io.ErrUnexpectedEOF}
	}
	return &ConnectionError{Op: "read", Err: err}
}

// fill reads at least one more byte into the buffer, compacting or
// growing it when it is full.
func (r *Reader) fill() error {
	if r.start > 0 {
		copy(r.buf, r.buf[r.start:r.end])
		r.end -= r.start
		r.start = 0
	}

	if r.end == len(r.buf) {
		grown := make([]byte, 2*len(r.buf))
		copy(grown, r.buf[:r.end])
		r.buf = grown
	}

	for range 100 {
		n, err := r.rd.Read(r.buf[r.end:])
		r.end += n
		if n > 0 {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return io.ErrNoProgress
}
