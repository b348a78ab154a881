package resp

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader returns its chunks one Read at a time.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestReader_ReadValue(t *testing.T) {
	for _, tt := range decodeCases {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input))
			v, err := r.ReadValue()
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(v), "got %s", v)
			assert.Zero(t, r.Buffered())
		})
	}
}

func TestReader_OneByteReads(t *testing.T) {
	for _, tt := range decodeCases {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(iotest.OneByteReader(strings.NewReader(tt.input)))
			v, err := r.ReadValue()
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(v), "got %s", v)
		})
	}
}

func TestReader_Scenarios(t *testing.T) {
	r := NewReader(&chunkReader{chunks: [][]byte{[]byte("$5\r\nhe"), []byte("llo\r\n")}})
	v, err := r.ReadValue()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(v.Data))

	r = NewReader(&chunkReader{chunks: [][]byte{[]byte("*2\r\n$3\r"), []byte("\nfoo\r\n$3\r\nbar"), []byte("\r\n")}})
	v, err = r.ReadValue()
	require.NoError(t, err)
	assert.True(t, Array(BulkString([]byte("foo")), BulkString([]byte("bar"))).Equal(v))
}

func TestReader_SmallBufferGrows(t *testing.T) {
	line := "+" + strings.Repeat("x", 1000) + "\r\n"
	r := NewReaderSize(strings.NewReader(line), 16)

	v, err := r.ReadValue()
	require.NoError(t, err)
	assert.Len(t, v.Data, 1000)
}

func TestReader_ConsecutiveValues(t *testing.T) {
	r := NewReader(strings.NewReader("+OK\r\n:2\r\n"))

	v, err := r.ReadValue()
	require.NoError(t, err)
	assert.True(t, v.IsOK())
	assert.Equal(t, 4, r.Buffered(), "next reply stays buffered")

	v, err = r.ReadValue()
	require.NoError(t, err)
	assert.True(t, Integer(2).Equal(v))
	assert.Zero(t, r.Buffered())

	r.Discard()
	assert.Zero(t, r.Buffered())
}

func TestReader_EOFBeforeReply(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.ReadValue()

	require.ErrorIs(t, err, ErrEmptyInput)
	assert.True(t, ShouldCloseConnection(err))
}

func TestReader_EOFMidFrame(t *testing.T) {
	for _, input := range []string{"$5\r\nhel", "*2\r\n:1\r\n", "+OK", "$3\r\nfoo\r"} {
		t.Run(input, func(t *testing.T) {
			r := NewReader(strings.NewReader(input))
			_, err := r.ReadValue()

			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			require.ErrorIs(t, err, io.ErrUnexpectedEOF)
		})
	}
}

func TestReader_SourceError(t *testing.T) {
	boom := errors.New("boom")
	r := NewReader(io.MultiReader(strings.NewReader("$5\r\nhe"), iotest.ErrReader(boom)))

	_, err := r.ReadValue()

	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "read", cerr.Op)
	require.ErrorIs(t, err, boom)
}

func TestReader_ProtocolErrorPropagates(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("&nope\r\n")))
	_, err := r.ReadValue()

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}
