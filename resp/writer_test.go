package resp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteGet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGet(&buf, []byte("mykey")))
	assert.Equal(t, "*2\r\n$3\r\nGET\r\n$5\r\nmykey\r\n", buf.String())
}

func TestWriteSet(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		ttl      int64
		expected string
	}{
		{
			name:     "basic set",
			key:      "mykey",
			value:    "hello",
			ttl:      10,
			expected: "*5\r\n$3\r\nSET\r\n$5\r\nmykey\r\n$5\r\nhello\r\n$2\r\nEX\r\n$2\r\n10\r\n",
		},
		{
			name:     "empty value",
			key:      "k",
			value:    "",
			ttl:      3600,
			expected: "*5\r\n$3\r\nSET\r\n$1\r\nk\r\n$0\r\n\r\n$2\r\nEX\r\n$4\r\n3600\r\n",
		},
		{
			name:     "binary value",
			key:      "bin",
			value:    "a\r\nb",
			ttl:      1,
			expected: "*5\r\n$3\r\nSET\r\n$3\r\nbin\r\n$4\r\na\r\nb\r\n$2\r\nEX\r\n$1\r\n1\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteSet(&buf, []byte(tt.key), []byte(tt.value), tt.ttl))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestWriteCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCommand(&buf, []byte("PING")))
	assert.Equal(t, "*1\r\n$4\r\nPING\r\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCommand(&buf, []byte("DEL"), []byte("a"), []byte("bc")))
	assert.Equal(t, "*3\r\n$3\r\nDEL\r\n$1\r\na\r\n$2\r\nbc\r\n", buf.String())
}

func TestWriteBuffered(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	require.NoError(t, WriteGet(bw, []byte("k")))
	assert.Equal(t, "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n", buf.String(), "bufio writer must be flushed")
}

func TestAppendValue_DecodesBack(t *testing.T) {
	for _, tt := range decodeCases {
		t.Run(tt.name, func(t *testing.T) {
			encoded := AppendValue(nil, tt.expected)
			assert.Equal(t, tt.input, string(encoded))
		})
	}
}

func TestEncodedCommandsDecode(t *testing.T) {
	v := decodeAll(t, string(AppendSet(nil, []byte("key"), []byte("value"), 10)))

	require.Equal(t, KindArray, v.Kind)
	require.Len(t, v.Elems, 5)
	args := make([]string, len(v.Elems))
	for i, e := range v.Elems {
		args[i] = string(e.Data)
	}
	assert.Equal(t, []string{"SET", "key", "value", "EX", "10"}, args)
}
