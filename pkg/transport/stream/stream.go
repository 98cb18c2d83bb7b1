// Package stream opens byte-stream transports: TCP sockets, serial
// devices and plain files.
package stream

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
)

// Dial connects to a TCP endpoint.
func Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", address)
}

// OpenDevice opens a file, or a device node used as is, for reading and
// writing.
func OpenDevice(path string) (io.ReadWriteCloser, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}

// Open opens a stream URL: tcp://host:port,
// serial:///dev/ttyUSB0?baud=115200 or file:///path.
func Open(ctx context.Context, u *url.URL) (io.ReadWriteCloser, error) {
	switch u.Scheme {
	case "tcp":
		return Dial(ctx, u.Host)
	case "serial":
		mode, err := SerialMode(u.Query())
		if err != nil {
			return nil, err
		}
		return OpenSerial(u.Path, mode)
	case "file":
		return OpenDevice(u.Path)
	}
	return nil, fmt.Errorf("unsupported stream scheme %q", u.Scheme)
}

// Listener accepts TCP connections, one session per connection.
type Listener struct {
	net.Listener
}

// Listen listens on a TCP address.
func Listen(address string) (*Listener, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Listener{Listener: l}, nil
}

// AcceptStream waits for the next connection.
func (l *Listener) AcceptStream() (io.ReadWriteCloser, error) {
	return l.Accept()
}
