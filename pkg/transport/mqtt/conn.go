package mqtt

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"
)

// Role selects the direction of the byte topics.
type Role int

// Roles.
const (
	RoleHost Role = iota
	RoleDevice
)

// Topics of a named peer.
func upTopic(name string) string   { return name + "/up" }
func downTopic(name string) string { return name + "/down" }
func metaTopic(name string) string { return name + "/meta" }

// Conn is an io.ReadWriteCloser over a pair of topics. Every Write is one
// MQTT message; Read returns received payloads in order, splitting them
// when the read buffer is smaller.
type Conn struct {
	client   *Client
	subTopic string
	pubTopic string
	ownsConn bool

	rxCh    chan []byte
	pending []byte
	done    chan struct{}
	once    sync.Once
}

// NewConn creates a Conn for the named peer on a connected Client.
func NewConn(c *Client, name string, role Role) *Conn {
	conn := &Conn{
		client: c,
		rxCh:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	if role == RoleDevice {
		conn.subTopic, conn.pubTopic = downTopic(name), upTopic(name)
	} else {
		conn.subTopic, conn.pubTopic = upTopic(name), downTopic(name)
	}
	c.Sub(conn.subTopic, conn.receive)
	return conn
}

// Dial connects to the broker of a URL like
// mqtt://host:1883/prefix/NAME?role=device and opens the byte topics of
// NAME. The returned Conn owns the client.
func Dial(ctx context.Context, u *url.URL) (*Conn, error) {
	dir, name := path.Split(strings.TrimSuffix(u.Path, "/"))
	if name == "" {
		return nil, fmt.Errorf("mqtt url %q has no peer name", u.String())
	}
	role := RoleHost
	if u.Query().Get("role") == "device" {
		role = RoleDevice
	}
	bu := *u
	bu.Path = dir
	opts, prefix := ClientOptionsFromURL(&bu)
	c := NewClient(opts, prefix)
	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect() }()
	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
	conn := NewConn(c, name, role)
	conn.ownsConn = true
	return conn, nil
}

// Client returns the underlying Client.
func (c *Conn) Client() *Client {
	return c.client
}

func (c *Conn) receive(_ string, payload []byte) {
	select {
	case c.rxCh <- append([]byte(nil), payload...):
	case <-c.done:
	}
}

// Read implements io.Reader.
func (c *Conn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		select {
		case data := <-c.rxCh:
			c.pending = data
		case <-c.done:
			return 0, io.EOF
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write implements io.Writer.
func (c *Conn) Write(p []byte) (int, error) {
	select {
	case <-c.done:
		return 0, io.ErrClosedPipe
	default:
	}
	token := c.client.Pub(c.pubTopic, p)
	token.Wait()
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.client.Unsub(c.subTopic)
		if c.ownsConn {
			c.client.Close()
		}
	})
	return nil
}
