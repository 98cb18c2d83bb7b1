package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Meta is what a peer announces about its session.
type Meta struct {
	Name     string `json:"name"`
	Identity string `json:"identity,omitempty"`
	Dialog   string `json:"dialog"`
	Sync     string `json:"sync"`
}

// Announcer publishes the retained meta of a peer.
type Announcer struct {
	Client *Client
	Name   string

	last string
}

// SetWill arranges the broker to clear the meta of name when the client
// goes away without withdrawing it. It must be called before NewClient.
func SetWill(opts *paho.ClientOptions, prefix, name string) *paho.ClientOptions {
	return opts.SetBinaryWill(prefix+metaTopic(name), nil, 1, true)
}

// NewAnnouncer creates an Announcer.
func NewAnnouncer(c *Client, name string) *Announcer {
	return &Announcer{Client: c, Name: name}
}

// Announce publishes meta if it changed since the last call.
func (a *Announcer) Announce(meta Meta) error {
	meta.Name = a.Name
	data, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	if string(data) == a.last {
		return nil
	}
	a.last = string(data)
	glog.V(1).Infof("announce %s", data)
	token := a.Client.PubWith(metaTopic(a.Name), data, 1, true)
	token.Wait()
	return token.Error()
}

// Withdraw clears the retained meta.
func (a *Announcer) Withdraw() error {
	a.last = ""
	token := a.Client.PubWith(metaTopic(a.Name), nil, 1, true)
	token.Wait()
	return token.Error()
}

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Discover collects the announced peers for the duration of timeout.
func Discover(ctx context.Context, c *Client, timeout time.Duration) ([]Meta, error) {
	resCh := make(chan Meta, 16)
	c.Sub("+/meta", func(topic string, payload []byte) {
		if meta, ok := parseMeta(topic, payload); ok {
			select {
			case resCh <- meta:
			case <-time.After(time.Second):
			}
		}
	})
	defer c.Unsub("+/meta")

	if timeout <= 0 {
		timeout = DefaultDiscoverTimeout
	}
	expire := time.After(timeout)
	var res []Meta
	for {
		select {
		case meta := <-resCh:
			res = append(res, meta)
		case <-expire:
			return res, nil
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

func parseMeta(topic string, payload []byte) (Meta, bool) {
	var meta Meta
	name := strings.TrimSuffix(topic, "/meta")
	if name == topic || len(payload) == 0 {
		return meta, false
	}
	if err := json.Unmarshal(payload, &meta); err != nil {
		glog.Warningf("bad meta on %q: %v", topic, err)
		return meta, false
	}
	meta.Name = name
	return meta, true
}
