package resp

// Protocol delimiters
const (
	// CRLF terminates every line of the protocol
	CRLF = "\r\n"
)

// Type markers (first byte of every encoded value)
const (
	MarkerSimpleString byte = '+'
	MarkerError        byte = '-'
	MarkerInteger      byte = ':'
	MarkerBulkString   byte = '$'
	MarkerArray        byte = '*'
)

// NullLength is the size field announcing a null bulk string ($-1) or a
// null array (*-1).
const NullLength = -1

// MaxBulkLength caps the announced size of a bulk string.
// Matches the server's default proto-max-bulk-len (512MB).
const MaxBulkLength = 512 * 1024 * 1024

// MaxLineLength caps the size of a simple line (simple string, error,
// integer, size fields) accumulated while waiting for CRLF.
const MaxLineLength = 64 * 1024

var crlfBytes = []byte(CRLF)
