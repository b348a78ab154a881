package resp

import (
	"bytes"
	"testing"
)

// FuzzDecoder checks the decoder never panics and that fragmentation does
// not change the outcome.
// Run with: go test -fuzz='^FuzzDecoder$' -fuzztime=60s ./resp
func FuzzDecoder(f *testing.F) {
	f.Add([]byte("+OK\r\n"), uint8(1))
	f.Add([]byte("-ERR wrong type\r\n"), uint8(3))
	f.Add([]byte(":12\r\n"), uint8(2))
	f.Add([]byte("$5\r\nhello\r\n"), uint8(4))
	f.Add([]byte("$0\r\n\r\n"), uint8(1))
	f.Add([]byte("$-1\r\n"), uint8(2))
	f.Add([]byte("*0\r\n"), uint8(1))
	f.Add([]byte("*-1\r\n"), uint8(1))
	f.Add([]byte("*2\r\n*1\r\n:1\r\n$3\r\nbar\r\n"), uint8(5))
	f.Add([]byte("$3\r\nfooXY"), uint8(2))
	f.Add([]byte("$abc\r\n"), uint8(1))
	f.Add([]byte("?\r\n"), uint8(1))
	f.Add([]byte(""), uint8(1))

	f.Fuzz(func(t *testing.T, data []byte, chunk uint8) {
		size := int(chunk%32) + 1

		whole, wholeErr := decodeOnce(data, len(data)+1)
		split, splitErr := decodeOnce(data, size)

		if (wholeErr == nil) != (splitErr == nil) {
			t.Fatalf("outcome depends on fragmentation: whole=%v split=%v", wholeErr, splitErr)
		}
		if wholeErr == nil && !whole.Equal(split) {
			t.Fatalf("value depends on fragmentation: %s vs %s", whole, split)
		}

		if wholeErr == nil {
			// A decoded value encodes back to a decodable frame.
			again, err := decodeOnce(AppendValue(nil, whole), 7)
			if err != nil || !again.Equal(whole) {
				t.Fatalf("re-encoded value does not decode back: %v", err)
			}
		}
	})
}

func decodeOnce(data []byte, size int) (Value, error) {
	var d Decoder
	var pending []byte
	for off := 0; off < len(data) || off == 0; off += size {
		pending = append(pending, data[off:min(off+size, len(data))]...)
		consumed, _, err := d.Feed(pending)
		if err != nil {
			return Value{}, err
		}
		pending = bytes.Clone(pending[consumed:])
		if d.Done() {
			return d.Value()
		}
	}
	return Value{}, ErrIncomplete
}
