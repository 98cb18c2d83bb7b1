package xeno

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/xeno.go/pkg/framework"
)

// DefaultReadSize is the read buffer size of a Link.
const DefaultReadSize = 256

// Link drives a Session over an io.ReadWriter from a framework.Loop.
// Reading happens on its own goroutine; received chunks are posted to
// the loop and decoded by the Link controller, so the Session only ever
// runs on the loop goroutine or under the Link lock.
type Link struct {
	Name       string
	ReadWriter io.ReadWriter
	ReadSize   int

	session   *Session
	connected bool
	lock      sync.Mutex
}

type linkChunk struct {
	link *Link
	data []byte
}

func (c *linkChunk) NewMessage() fx.Message { return &linkChunk{} }

// NewLink creates a Link with a Session using d.
func NewLink(name string, rw io.ReadWriter, conf Config, d Dispatcher) *Link {
	l := &Link{Name: name, ReadWriter: rw, ReadSize: DefaultReadSize}
	if conf.Name == "" {
		conf.Name = name
	}
	l.session = NewSession(conf, d, l)
	return l
}

// AddToLoop implements framework.LoopAdder.
func (l *Link) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(l)
	loop.AddController(fx.PrLvLink, l)
}

// Send implements Transport.
func (l *Link) Send(p []byte) error {
	_, err := l.ReadWriter.Write(p)
	return err
}

// Run implements framework.Runnable. It reads until the ReadWriter fails
// or the context is canceled, and reports a failed read to the Session as
// a lost link.
func (l *Link) Run(ctx context.Context) error {
	ctl := fx.LoopCtlFrom(ctx)
	if closer, ok := l.ReadWriter.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, func() error {
			return l.readLoop(ctx, ctl)
		})
	}
	return l.readLoop(ctx, ctl)
}

func (l *Link) readLoop(ctx context.Context, ctl fx.LoopControl) error {
	size := l.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}
	buf := make([]byte, size)
	for {
		n, err := l.ReadWriter.Read(buf)
		if n > 0 && ctl != nil {
			ctl.PostMessage(&linkChunk{link: l, data: append([]byte(nil), buf[:n]...)})
			ctl.TriggerNext()
		}
		if err != nil {
			if ctx.Err() == nil {
				glog.Warningf("%s: read: %v", l.Name, err)
			}
			l.lock.Lock()
			l.session.LinkLost()
			l.lock.Unlock()
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// Control implements framework.Controller.
func (l *Link) Control(cc fx.ControlContext) error {
	var chunks [][]byte
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		if c, ok := mc.CurrentMessage().(*linkChunk); ok && c.link == l {
			chunks = append(chunks, c.data)
			mc.MessageTaken()
		}
	}))

	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.connected {
		l.connected = true
		l.session.Connected(cc.Time())
	}
	l.session.Tick(cc.Time())
	for _, data := range chunks {
		l.session.OnBytesReceived(data)
	}
	return nil
}

// Submit queues an event on the Session.
func (l *Link) Submit(ev Event, demandsAck bool) (MessageID, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.session.Submit(ev, demandsAck)
}

// Hangup hangs up the Session.
func (l *Link) Hangup() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.session.Hangup()
}

// Resync forces the Session to resync.
func (l *Link) Resync() {
	l.lock.Lock()
	l.session.Resync()
	l.lock.Unlock()
}

// State returns the Session state.
func (l *Link) State() SessionState {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.session.State()
}

// Stats returns the Session counters.
func (l *Link) Stats() Stats {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.session.Stats()
}

// PeerIdentity returns what the peer described itself as.
func (l *Link) PeerIdentity() string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return string(l.session.PeerIdentity())
}
