// Package websocket carries a xeno byte stream in binary websocket frames.
package websocket

import (
	"io"
	"net/http"
	"net/url"

	"golang.org/x/net/websocket"
)

// Dial connects to a websocket endpoint. Origin defaults to the endpoint
// itself over http(s).
func Dial(u *url.URL, origin string) (io.ReadWriteCloser, error) {
	if origin == "" {
		o := *u
		o.Scheme = "http"
		if u.Scheme == "wss" {
			o.Scheme = "https"
		}
		o.Path, o.RawQuery = "/", ""
		origin = o.String()
	}
	conn, err := websocket.Dial(u.String(), "", origin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// Handler serves websocket connections, passing each one to fn. The
// connection is closed when fn returns.
func Handler(fn func(io.ReadWriteCloser)) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		fn(conn)
	})
}
