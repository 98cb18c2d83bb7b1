package env

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/xeno.go/pkg/framework"
	"github.com/robotalks/xeno.go/pkg/l0/xeno"
	"github.com/robotalks/xeno.go/pkg/l1/msgs"
	"github.com/robotalks/xeno.go/pkg/metrics"
	"github.com/robotalks/xeno.go/pkg/transport"
	"github.com/robotalks/xeno.go/pkg/transport/mqtt"
)

// DefaultAnnounceInterval is how often the session state is checked for
// announcing.
const DefaultAnnounceInterval = 200 * time.Millisecond

// Env is a session over a transport with everything around it.
type Env struct {
	Config     *Config
	Registry   *msgs.Registry
	Dispatcher *msgs.Dispatcher
	Link       *xeno.Link
	Collector  *metrics.Collector
	Metrics    *metrics.Server
	Announcer  *mqtt.Announcer

	closers []io.Closer
}

// NewEnv opens the transport and creates the session. Events and session
// notifications go to h.
func (c *Config) NewEnv(ctx context.Context, h msgs.Handler) (*Env, error) {
	if c.File != "" {
		if err := c.LoadFile(c.File); err != nil {
			return nil, err
		}
	}
	if c.URL == "" {
		return nil, fmt.Errorf("transport URL must be specified")
	}
	rw, err := transport.Open(ctx, c.URL)
	if err != nil {
		return nil, fmt.Errorf("open transport %q error: %w", c.URL, err)
	}
	env := NewEnvWith(c, rw, h)
	if c.MetricsAddr != "" {
		if err := env.ServeMetrics(c.MetricsAddr); err != nil {
			env.Close()
			return nil, fmt.Errorf("listen metrics on %q error: %w", c.MetricsAddr, err)
		}
	}
	if c.AnnounceURL != "" {
		if err := env.setupAnnouncer(ctx); err != nil {
			env.Close()
			return nil, fmt.Errorf("create announcer error: %w", err)
		}
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv(ctx context.Context, h msgs.Handler) *Env {
	env, err := c.NewEnv(ctx, h)
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// NewEnvWith creates Env over an opened transport, which the Env closes.
func NewEnvWith(c *Config, rw io.ReadWriteCloser, h msgs.Handler) *Env {
	env := &Env{
		Config:    c,
		Registry:  msgs.NewDefaultRegistry(),
		Collector: metrics.NewCollector(""),
	}
	env.Dispatcher = msgs.NewDispatcher(env.Registry, h)
	env.Link = xeno.NewLink(c.Session.Name, rw, c.Session, env.Dispatcher)
	env.Collector.Add(env.Link.Name, &linkSource{Link: env.Link, Dispatcher: env.Dispatcher})
	env.closers = append(env.closers, rw)
	return env
}

// ServeMetrics binds addr for the Collector. The endpoint is served once
// the Env is added to a Loop.
func (e *Env) ServeMetrics(addr string) error {
	srv, err := metrics.Listen(addr, e.Collector)
	if err != nil {
		return err
	}
	glog.Infof("metrics on http://%s/metrics", srv.Addr())
	e.Metrics = srv
	e.closers = append(e.closers, srv)
	return nil
}

func (e *Env) setupAnnouncer(ctx context.Context) error {
	u, err := url.Parse(e.Config.AnnounceURL)
	if err != nil {
		return err
	}
	opts, prefix := mqtt.ClientOptionsFromURL(u)
	mqtt.SetWill(opts, prefix, e.Link.Name)
	client := mqtt.NewClient(opts, prefix)
	errCh := make(chan error, 1)
	go func() { errCh <- client.Connect() }()
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		client.Close()
		return err
	}
	e.Announcer = mqtt.NewAnnouncer(client, e.Link.Name)
	e.closers = append(e.closers, client)
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (e *Env) AddToLoop(loop *fx.Loop) {
	loop.Add(e.Link)
	if e.Metrics != nil {
		loop.AddRunnable(e.Metrics)
	}
	if e.Announcer != nil {
		loop.AddRunnable(fx.RunnableFunc(e.announce))
	}
}

func (e *Env) announce(ctx context.Context) error {
	ticker := time.NewTicker(DefaultAnnounceInterval)
	defer ticker.Stop()
	for {
		state := e.Link.State()
		err := e.Announcer.Announce(mqtt.Meta{
			Identity: e.Link.PeerIdentity(),
			Dialog:   state.Dialog.String(),
			Sync:     state.Sync.String(),
		})
		if err != nil {
			glog.Warningf("announce error: %v", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			if err := e.Announcer.Withdraw(); err != nil {
				glog.Warningf("withdraw error: %v", err)
			}
			return nil
		}
	}
}

// Close releases the transport, the metrics endpoint and the announcer.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs.Add(e.closers[i].Close())
	}
	e.closers = nil
	return errs.Aggregate()
}

type linkSource struct {
	*xeno.Link
	*msgs.Dispatcher
}
