package resp

import (
	"bytes"
	"math"
	"strconv"
)

// phase is one state of the decoder's state machine.
type phase uint8

const (
	phaseStartType phase = iota
	phaseSimpleLine
	phaseBulkSize
	phaseBulkContent
	phaseBulkTerminator
	phaseArraySize
	phaseElementDone
	phaseComplete
)

var phaseNames = [...]string{
	phaseStartType:      "start-type",
	phaseSimpleLine:     "simple-line",
	phaseBulkSize:       "bulk-size",
	phaseBulkContent:    "bulk-content",
	phaseBulkTerminator: "bulk-terminator",
	phaseArraySize:      "array-size",
	phaseElementDone:    "element-done",
	phaseComplete:       "complete",
}

func (p phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// arrayFrame is an array whose elements are still being decoded.
type arrayFrame struct {
	remaining int64
	elems     []Value
}

// decodeState is everything a decode needs to resume on the next feed.
// It holds no reference to the caller's buffers.
type decodeState struct {
	phase   phase
	kind    Kind  // kind of the scalar being decoded
	current Value // last finished value, waiting to be attached or returned

	bulkRemaining int64
	bulk          []byte

	// in-progress arrays, innermost last
	stack []arrayFrame

	started bool
	taken   bool
}

// Decoder decodes one protocol value from a byte stream delivered in
// arbitrary fragments.
//
// Each call to Feed receives the bytes currently available. Feed reports
// how many bytes it consumed (fully interpreted, must not be delivered
// again) and how many it examined. When a line (simple value or size
// field) is incomplete, its bytes are examined but not consumed: the
// caller delivers them again together with the following bytes. Bulk
// content is consumed as it arrives.
//
// A Decoder decodes a single value. Use Reset to reuse it.
type Decoder struct {
	st decodeState
}

// NewDecoder returns a decoder ready for a new value.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset discards any progress so the decoder can decode a new value.
func (d *Decoder) Reset() {
	d.st = decodeState{}
}

// Done reports whether a complete value has been decoded.
func (d *Decoder) Done() bool {
	return d.st.phase == phaseComplete
}

// Started reports whether the decoder has received any byte.
func (d *Decoder) Started() bool {
	return d.st.started
}

// Value returns the decoded value. It can be retrieved exactly once.
func (d *Decoder) Value() (Value, error) {
	if d.st.phase != phaseComplete {
		return Value{}, ErrIncomplete
	}
	if d.st.taken {
		return Value{}, ErrValueTaken
	}
	d.st.taken = true
	v := d.st.current
	d.st.current = Value{}
	return v, nil
}

// Feed advances the decoder over buf.
//
// Insufficient data is not an error: Feed returns with Done() false and
// the caller feeds again once more bytes are available. Any error is
// fatal for the decode and for the stream it came from.
func (d *Decoder) Feed(buf []byte) (consumed, examined int, err error) {
	if d.st.phase == phaseComplete {
		return 0, 0, nil
	}

	if len(buf) == 0 {
		if !d.st.started {
			return 0, 0, &ProtocolError{Message: "no reply data", Err: ErrEmptyInput}
		}
		return 0, 0, nil
	}
	d.st.started = true

	for d.st.phase != phaseComplete {
		n, more, err := d.step(buf[consumed:])
		if err != nil {
			return consumed, len(buf), err
		}
		consumed += n
		if more {
			return consumed, len(buf), nil
		}
	}

	return consumed, consumed, nil
}

// step runs the current phase over buf. It returns the number of bytes
// consumed and more == true when the phase needs bytes beyond buf.
func (d *Decoder) step(buf []byte) (n int, more bool, err error) {
	switch d.st.phase {
	case phaseStartType:
		return d.startType(buf)
	case phaseSimpleLine:
		return d.simpleLine(buf)
	case phaseBulkSize:
		return d.bulkSize(buf)
	case phaseBulkContent:
		return d.bulkContent(buf)
	case phaseBulkTerminator:
		return d.bulkTerminator(buf)
	case phaseArraySize:
		return d.arraySize(buf)
	case phaseElementDone:
		d.elementDone()
		return 0, false, nil
	default:
		return 0, false, &ProtocolError{Message: "unexpected decoder phase " + d.st.phase.String()}
	}
}

func (d *Decoder) startType(buf []byte) (int, bool, error) {
	if len(buf) == 0 {
		return 0, true, nil
	}

	kind, ok := kindOf(buf[0])
	if !ok {
		return 0, false, &ProtocolError{Message: "unknown type marker " + strconv.QuoteRune(rune(buf[0]))}
	}

	d.st.kind = kind
	switch kind {
	case KindBulkString:
		d.st.phase = phaseBulkSize
	case KindArray:
		d.st.phase = phaseArraySize
	default:
		d.st.phase = phaseSimpleLine
	}
	return 1, false, nil
}

func (d *Decoder) simpleLine(buf []byte) (int, bool, error) {
	line, n, err := readLine(buf)
	if err != nil || n == 0 {
		return 0, n == 0, err
	}

	d.st.current = Value{Kind: d.st.kind, Data: bytes.Clone(line)}
	if d.st.current.Data == nil {
		d.st.current.Data = []byte{}
	}
	d.finishValue()
	return n, false, nil
}

func (d *Decoder) bulkSize(buf []byte) (int, bool, error) {
	line, n, err := readLine(buf)
	if err != nil || n == 0 {
		return 0, n == 0, err
	}

	size, err := parseSize(line, "bulk string")
	if err != nil {
		return 0, false, err
	}

	switch {
	case size == NullLength:
		// Null bulk string: no content and no terminator follow.
		d.st.current = NullBulkString()
		d.finishValue()
	case size < 0:
		return 0, false, &ProtocolError{Message: "negative bulk string size " + strconv.FormatInt(size, 10)}
	case size > MaxBulkLength:
		return 0, false, &ProtocolError{Message: "bulk string size exceeds limit: " + strconv.FormatInt(size, 10)}
	case size == 0:
		d.st.bulk = []byte{}
		d.st.phase = phaseBulkTerminator
	default:
		d.st.bulkRemaining = size
		d.st.bulk = make([]byte, 0, min(size, 64*1024))
		d.st.phase = phaseBulkContent
	}
	return n, false, nil
}

func (d *Decoder) bulkContent(buf []byte) (int, bool, error) {
	if len(buf) == 0 {
		return 0, true, nil
	}

	take := int(min(int64(len(buf)), d.st.bulkRemaining))
	d.st.bulk = append(d.st.bulk, buf[:take]...)
	d.st.bulkRemaining -= int64(take)

	if d.st.bulkRemaining == 0 {
		d.st.phase = phaseBulkTerminator
	}
	return take, false, nil
}

func (d *Decoder) bulkTerminator(buf []byte) (int, bool, error) {
	switch {
	case len(buf) >= 2:
		if !bytes.HasPrefix(buf, crlfBytes) {
			return 0, false, &ProtocolError{Message: "missing bulk string terminator"}
		}
	case len(buf) == 1 && buf[0] == '\r', len(buf) == 0:
		return 0, true, nil
	default:
		return 0, false, &ProtocolError{Message: "missing bulk string terminator"}
	}

	d.st.current = Value{Kind: KindBulkString, Data: d.st.bulk}
	d.st.bulk = nil
	d.finishValue()
	return 2, false, nil
}

func (d *Decoder) arraySize(buf []byte) (int, bool, error) {
	line, n, err := readLine(buf)
	if err != nil || n == 0 {
		return 0, n == 0, err
	}

	count, err := parseSize(line, "array")
	if err != nil {
		return 0, false, err
	}

	switch {
	case count == NullLength:
		d.st.current = Value{Kind: KindArray, Null: true}
		d.finishValue()
	case count < 0:
		return 0, false, &ProtocolError{Message: "negative array size " + strconv.FormatInt(count, 10)}
	case count > math.MaxInt32:
		return 0, false, &ProtocolError{Message: "array size exceeds limit: " + strconv.FormatInt(count, 10)}
	case count == 0:
		d.st.current = Array()
		d.finishValue()
	default:
		d.st.stack = append(d.st.stack, arrayFrame{
			remaining: count,
			elems:     make([]Value, 0, min(count, 1024)),
		})
		d.st.phase = phaseStartType
	}
	return n, false, nil
}

// elementDone attaches the finished value to the innermost array. A
// completed array is popped and becomes the finished value for its
// parent, which is handled by the next elementDone step.
func (d *Decoder) elementDone() {
	top := &d.st.stack[len(d.st.stack)-1]
	top.elems = append(top.elems, d.st.current)
	top.remaining--
	d.st.current = Value{}

	if top.remaining > 0 {
		d.st.phase = phaseStartType
		return
	}

	d.st.current = Value{Kind: KindArray, Elems: top.elems}
	d.st.stack = d.st.stack[:len(d.st.stack)-1]
	d.finishValue()
}

// finishValue moves to the phase following a complete value.
func (d *Decoder) finishValue() {
	if len(d.st.stack) > 0 {
		d.st.phase = phaseElementDone
		return
	}
	d.st.phase = phaseComplete
}

// readLine returns the bytes before the first CRLF in buf and the number
// of bytes including the terminator. n is 0 when no CRLF is present yet.
func readLine(buf []byte) (line []byte, n int, err error) {
	idx := bytes.Index(buf, crlfBytes)
	switch {
	case idx > MaxLineLength, idx < 0 && len(buf) > MaxLineLength+1:
		return nil, 0, &ProtocolError{Message: "line exceeds maximum length"}
	case idx < 0:
		return nil, 0, nil
	}
	return buf[:idx], idx + 2, nil
}

func parseSize(line []byte, what string) (int64, error) {
	size, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, &ProtocolError{Message: "invalid " + what + " size " + strconv.Quote(string(line)), Err: err}
	}
	return size, nil
}
