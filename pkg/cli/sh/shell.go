package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/xeno.go/pkg/framework"
	"github.com/robotalks/xeno.go/pkg/env"
	"github.com/robotalks/xeno.go/pkg/l0/xeno"
	"github.com/robotalks/xeno.go/pkg/l1/msgs"
	"github.com/robotalks/xeno.go/pkg/transport/mqtt"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	// DeliveryTimeout bounds the wait for an acknowledgement.
	DeliveryTimeout time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *ConnLoop
}

// ConnLoop is a running loop with a session.
type ConnLoop struct {
	Ctx    context.Context
	Cancel func()
	Env    *env.Env
	Loop   *fx.Loop

	printer func(string)
	lock    sync.Mutex
	results map[xeno.MessageID]error
	waiters map[xeno.MessageID]chan error
	// ids given up on; their late results are dropped.
	expired map[xeno.MessageID]struct{}
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&StateCmd,
		&StatsCmd,
		&HangupCmd,
		&ResyncCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive:     !evalOnly,
		OutputJSON:      outputJSON,
		DeliveryTimeout: 2 * time.Second,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// FormatEvent prints an event as NAME {fields}.
func FormatEvent(reg *msgs.Registry, ev msgs.Event) string {
	name := fmt.Sprintf("%04x", uint16(ev.TypeCode()))
	if def, err := reg.Lookup(ev.TypeCode()); err == nil {
		name = def.Name
	}
	return fmt.Sprintf("%s {%s}", name, proto.CompactTextString(ev.Serializable()))
}

// FormatEventJSON prints an event as JSON.
func FormatEventJSON(ev msgs.Event) (string, error) {
	var m jsonpb.Marshaler
	return m.MarshalToString(ev.Serializable())
}

// Send submits an event and, if its type demands acknowledgement, waits
// for the delivery result.
func Send(c *ishell.Context, ev msgs.Event) error {
	s := ShellFrom(c)
	if s.Conn == nil {
		err := fmt.Errorf("not connected")
		c.Err(err)
		return err
	}
	def, err := s.Conn.Env.Registry.Lookup(ev.TypeCode())
	if err != nil {
		c.Err(err)
		return err
	}
	id, err := s.Conn.Env.Link.Submit(ev, def.DemandsAck)
	if err != nil {
		c.Err(err)
		return err
	}
	if !def.DemandsAck {
		c.Println("SENT")
		return nil
	}
	if err := s.Conn.wait(id, s.DeliveryTimeout); err != nil {
		c.Err(err)
		return err
	}
	c.Println("OK")
	return nil
}

func (l *ConnLoop) wait(id xeno.MessageID, timeout time.Duration) error {
	l.lock.Lock()
	delete(l.expired, id)
	if err, ok := l.results[id]; ok {
		delete(l.results, id)
		l.lock.Unlock()
		return err
	}
	ch := make(chan error, 1)
	l.waiters[id] = ch
	l.lock.Unlock()
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		l.lock.Lock()
		delete(l.waiters, id)
		l.expired[id] = struct{}{}
		l.lock.Unlock()
		return fmt.Errorf("delivery of %d timeout", id)
	}
}

func (l *ConnLoop) settle(id xeno.MessageID, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if ch := l.waiters[id]; ch != nil {
		delete(l.waiters, id)
		ch <- err
		return
	}
	if _, ok := l.expired[id]; ok {
		delete(l.expired, id)
		return
	}
	l.results[id] = err
}

// HandleMessage implements msgs.Handler.
func (l *ConnLoop) HandleMessage(msg fx.Message) {
	switch m := msg.(type) {
	case *msgs.Delivered:
		l.settle(m.ID, nil)
	case *msgs.DeliveryFailed:
		l.settle(m.ID, m.Err)
	case *msgs.Established:
		l.printer("session established")
	case *msgs.Lost:
		l.printer(fmt.Sprintf("session lost: %v", m.Reason))
	case msgs.Event:
		l.printer("<< " + FormatEvent(l.Env.Registry, m))
	}
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens a session over the transport URL.
func (s *Shell) Connect(rawURL string) error {
	conf := *s.Config
	if rawURL != "" {
		conf.URL = rawURL
	}
	connLoop := &ConnLoop{
		printer: func(line string) { s.Shell.Println(line) },
		results: make(map[xeno.MessageID]error),
		waiters: make(map[xeno.MessageID]chan error),
		expired: make(map[xeno.MessageID]struct{}),
	}
	connLoop.Ctx, connLoop.Cancel = context.WithCancel(context.Background())
	e, err := conf.NewEnv(connLoop.Ctx, connLoop)
	if err != nil {
		connLoop.Cancel()
		return err
	}
	connLoop.Env = e
	connLoop.Loop = fx.NewLoop().Add(e)
	s.Disconnect()
	s.Conn = connLoop
	go func() {
		connLoop.Loop.Run(connLoop.Ctx)
		e.Close()
	}()
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", e.Link.Name))
	return nil
}

// Disconnect disconnects current session.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Cancel()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.URL != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.URL)
		}
		if err := s.Connect(""); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.URL, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func (s *Shell) printJSON(c *ishell.Context, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

var (
	// DiscoverCmd lists the announced sessions.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			metas, err := discover(s.Config.AnnounceURL)
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				s.printJSON(c, metas)
				return
			}
			if len(metas) == 0 {
				c.Println("No sessions found")
				return
			}
			for _, meta := range metas {
				c.Printf("%s %s/%s %s\n", meta.Name, meta.Dialog, meta.Sync, meta.Identity)
			}
		},
	}

	// ConnectCmd connects a transport.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			var rawURL string
			if len(c.Args) > 0 {
				rawURL = c.Args[0]
			}
			if err := ShellFrom(c).Connect(rawURL); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current session.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// StateCmd prints the session state.
	StateCmd = ishell.Cmd{
		Name:    "state",
		Aliases: []string{"st"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			link := s.Conn.Env.Link
			state := link.State()
			if s.OutputJSON {
				s.printJSON(c, map[string]string{
					"dialog": state.Dialog.String(),
					"sync":   state.Sync.String(),
					"peer":   link.PeerIdentity(),
				})
				return
			}
			c.Printf("%s peer=%q\n", state, link.PeerIdentity())
		}),
	}

	// StatsCmd prints the session counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			stats := s.Conn.Env.Link.Stats()
			counts := s.Conn.Env.Dispatcher.Counts()
			if s.OutputJSON {
				s.printJSON(c, map[string]interface{}{"session": stats, "events": counts})
				return
			}
			c.Printf("%+v\n", stats)
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				c.Printf("%s: %d\n", name, counts[name])
			}
		}),
	}

	// HangupCmd closes the dialog.
	HangupCmd = ishell.Cmd{
		Name: "hangup",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context) {
			if err := ShellFrom(c).Conn.Env.Link.Hangup(); err != nil {
				c.Err(err)
			}
		}),
	}

	// ResyncCmd forces a resynchronization.
	ResyncCmd = ishell.Cmd{
		Name: "resync",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context) {
			ShellFrom(c).Conn.Env.Link.Resync()
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}

func discover(announceURL string) ([]mqtt.Meta, error) {
	if announceURL == "" {
		return nil, fmt.Errorf("announce URL must be specified")
	}
	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, err
	}
	opts, prefix := mqtt.ClientOptionsFromURL(u)
	client := mqtt.NewClient(opts, prefix)
	if err := client.Connect(); err != nil {
		return nil, err
	}
	defer client.Close()
	return mqtt.Discover(context.Background(), client, mqtt.DefaultDiscoverTimeout)
}
