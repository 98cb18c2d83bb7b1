// Package transport opens the byte streams a xeno Link runs over.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/robotalks/xeno.go/pkg/transport/mqtt"
	"github.com/robotalks/xeno.go/pkg/transport/stream"
	"github.com/robotalks/xeno.go/pkg/transport/websocket"
)

// Opener opens a parsed URL.
type Opener func(ctx context.Context, u *url.URL) (io.ReadWriteCloser, error)

var openers = map[string]Opener{
	"tcp":    stream.Open,
	"serial": stream.Open,
	"file":   stream.Open,
	"ws":     openWebsocket,
	"wss":    openWebsocket,
	"mqtt":   openMQTT,
}

// Register adds or replaces the Opener of a scheme. It's not safe to call
// concurrently with Open.
func Register(scheme string, opener Opener) {
	openers[scheme] = opener
}

// Schemes lists the schemes Open understands.
func Schemes() []string {
	schemes := make([]string, 0, len(openers))
	for scheme := range openers {
		schemes = append(schemes, scheme)
	}
	return schemes
}

// Open parses rawURL and opens the stream by scheme. A bare path is a
// device or file.
func Open(ctx context.Context, rawURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transport URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" {
		u.Scheme = "file"
	}
	opener := openers[u.Scheme]
	if opener == nil {
		return nil, fmt.Errorf("unknown transport scheme %q", u.Scheme)
	}
	return opener(ctx, u)
}

func openWebsocket(_ context.Context, u *url.URL) (io.ReadWriteCloser, error) {
	return websocket.Dial(u, u.Query().Get("origin"))
}

func openMQTT(ctx context.Context, u *url.URL) (io.ReadWriteCloser, error) {
	return mqtt.Dial(ctx, u)
}
