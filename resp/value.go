package resp

import (
	"bytes"
	"strconv"
	"strings"
)

// Kind identifies the protocol type of a decoded Value.
type Kind byte

const (
	KindSimpleString = Kind(MarkerSimpleString)
	KindError        = Kind(MarkerError)
	KindInteger      = Kind(MarkerInteger)
	KindBulkString   = Kind(MarkerBulkString)
	KindArray        = Kind(MarkerArray)
)

func (k Kind) String() string {
	switch k {
	case KindSimpleString:
		return "simple-string"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulkString:
		return "bulk-string"
	case KindArray:
		return "array"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// kindOf maps a type marker byte to its Kind.
func kindOf(marker byte) (Kind, bool) {
	switch marker {
	case MarkerSimpleString, MarkerError, MarkerInteger, MarkerBulkString, MarkerArray:
		return Kind(marker), true
	default:
		return 0, false
	}
}

// Value is a decoded protocol value.
//
// Scalars (SimpleString, Error, Integer) keep their raw bytes in Data; the
// caller decides how to interpret them.
//
// A BulkString has three distinct states:
//   - null ($-1): Null is true and Data is nil
//   - present but empty ($0): Null is false and Data is a non-nil empty slice
//   - present: Null is false and Data holds the content
//
// An Array keeps its elements in Elems. A null array (*-1) has Null set.
type Value struct {
	Kind  Kind
	Data  []byte
	Elems []Value
	Null  bool
}

// SimpleString builds a simple string value.
func SimpleString(s string) Value {
	return Value{Kind: KindSimpleString, Data: []byte(s)}
}

// ErrorValue builds an error value.
func ErrorValue(msg string) Value {
	return Value{Kind: KindError, Data: []byte(msg)}
}

// Integer builds an integer value.
func Integer(n int64) Value {
	return Value{Kind: KindInteger, Data: strconv.AppendInt(nil, n, 10)}
}

// BulkString builds a present bulk string value. A nil or empty b yields
// the empty-but-present state, never null.
func BulkString(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{Kind: KindBulkString, Data: b}
}

// NullBulkString builds the null bulk string value.
func NullBulkString() Value {
	return Value{Kind: KindBulkString, Null: true}
}

// Array builds an array value.
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{Kind: KindArray, Elems: elems}
}

// IsNull reports whether v is a null bulk string or a null array.
func (v Value) IsNull() bool {
	return v.Null
}

// IsEmptyString reports whether v is a present bulk string with no content.
func (v Value) IsEmptyString() bool {
	return v.Kind == KindBulkString && !v.Null && len(v.Data) == 0
}

// IsError reports whether v is an error reply.
func (v Value) IsError() bool {
	return v.Kind == KindError
}

// IsOK reports whether v is the simple string OK.
func (v Value) IsOK() bool {
	return v.Kind == KindSimpleString && string(v.Data) == "OK"
}

// Int parses an Integer value (or a numeric bulk string).
func (v Value) Int() (int64, error) {
	if v.Kind != KindInteger && v.Kind != KindBulkString {
		return 0, &ProtocolError{Message: "value is not numeric: " + v.Kind.String()}
	}
	n, err := strconv.ParseInt(string(v.Data), 10, 64)
	if err != nil {
		return 0, &ProtocolError{Message: "invalid integer", Err: err}
	}
	return n, nil
}

// Equal reports whether v and o hold the same kind, nullness, bytes and
// elements. Nil and empty Data compare equal only when both are non-null.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Null != o.Null {
		return false
	}
	if !bytes.Equal(v.Data, o.Data) {
		return false
	}
	if len(v.Elems) != len(o.Elems) {
		return false
	}
	for i := range v.Elems {
		if !v.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

// String renders v for debugging.
func (v Value) String() string {
	if v.Null {
		return v.Kind.String() + ":<null>"
	}
	if v.Kind == KindArray {
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, " | ") + "]"
	}
	return v.Kind.String() + ":" + strconv.Quote(string(v.Data))
}
