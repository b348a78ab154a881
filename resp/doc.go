// Package resp implements the wire framing of the key-value store's line
// protocol (RESP2) for a client: command encoders and an incremental
// response decoder.
//
// The package has no notion of connections or pooling. It serves the
// pooled client in the parent package and can be used on any io.Reader
// and io.Writer.
//
// # Framing
//
//	+<text>\r\n              simple string
//	-<text>\r\n              error
//	:<digits>\r\n            integer
//	$<len>\r\n<bytes>\r\n    bulk string ($-1\r\n is null)
//	*<count>\r\n<elements>   array (may nest)
//
// # Encoding
//
// Commands are arrays of bulk strings:
//
//	resp.WriteGet(conn, []byte("mykey"))
//	resp.WriteSet(conn, []byte("mykey"), []byte("value"), 10)
//	resp.WriteCommand(conn, []byte("PING"))
//
// # Decoding
//
// Decoder is a resumable state machine. It accepts the bytes currently
// available, however they are fragmented, and reports how much it
// consumed:
//
//	var d resp.Decoder
//	consumed, examined, err := d.Feed(chunk)
//	if d.Done() {
//	    v, _ := d.Value()
//	}
//
// Reader drives a Decoder over an io.Reader and keeps the unconsumed bytes:
//
//	r := resp.NewReader(conn)
//	v, err := r.ReadValue()
//	if err != nil {
//	    if resp.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//
// # Null and empty bulk strings
//
// $-1\r\n decodes to a Value with Null set and nil Data. $0\r\n\r\n
// decodes to a present Value with empty, non-nil Data. The two are never
// conflated.
//
// # Error Handling
//
// ProtocolError and ConnectionError leave the stream at an unknown
// position: the connection must be closed. ServerError (an error reply
// turned into a Go error by a caller) keeps the connection usable. Use
// ShouldCloseConnection to decide.
package resp
