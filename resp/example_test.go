package resp_test

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pior/redis/resp"
)

func ExampleDecoder() {
	var d resp.Decoder
	var pending []byte

	for _, chunk := range []string{"*2\r\n$3\r\nfo", "o\r\n:4", "2\r\n"} {
		pending = append(pending, chunk...)
		consumed, _, err := d.Feed(pending)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		pending = pending[consumed:]
	}

	v, _ := d.Value()
	fmt.Println(v)
	// Output: [bulk-string:"foo" | integer:"42"]
}

func ExampleReader() {
	r := resp.NewReader(strings.NewReader("$-1\r\n"))

	v, err := r.ReadValue()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(v.IsNull())
	// Output: true
}

func ExampleWriteSet() {
	var buf bytes.Buffer
	_ = resp.WriteSet(&buf, []byte("greeting"), []byte("hello"), 10)
	fmt.Printf("%q\n", buf.String())
	// Output: "*5\r\n$3\r\nSET\r\n$8\r\ngreeting\r\n$5\r\nhello\r\n$2\r\nEX\r\n$2\r\n10\r\n"
}
