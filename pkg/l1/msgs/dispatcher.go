package msgs

import (
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/xeno.go/pkg/framework"
	"github.com/robotalks/xeno.go/pkg/l0/xeno"
)

// Established is delivered when the session is established.
type Established struct{}

// NewMessage implements Message.
func (m *Established) NewMessage() fx.Message { return &Established{} }

// Lost is delivered when the session is over.
type Lost struct {
	Reason error
}

// NewMessage implements Message.
func (m *Lost) NewMessage() fx.Message { return &Lost{} }

// Delivered is delivered when the peer acknowledged a message.
type Delivered struct {
	ID xeno.MessageID
}

// NewMessage implements Message.
func (m *Delivered) NewMessage() fx.Message { return &Delivered{} }

// DeliveryFailed is delivered when a message was never acknowledged.
type DeliveryFailed struct {
	ID  xeno.MessageID
	Err error
}

// NewMessage implements Message.
func (m *DeliveryFailed) NewMessage() fx.Message { return &DeliveryFailed{} }

// Handler receives decoded events and session notifications.
type Handler interface {
	HandleMessage(fx.Message)
}

// HandleMessageFunc is func form of Handler.
type HandleMessageFunc func(fx.Message)

// HandleMessage implements Handler.
func (f HandleMessageFunc) HandleMessage(msg fx.Message) {
	f(msg)
}

// PostTo returns a Handler posting everything to a loop.
func PostTo(ctl fx.LoopControl) Handler {
	return HandleMessageFunc(ctl.PostMessage)
}

// Dispatcher implements xeno.Dispatcher with a Registry.
type Dispatcher struct {
	Registry *Registry
	Handler  Handler

	counts map[xeno.TypeCode]int
	lock   sync.Mutex
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(reg *Registry, h Handler) *Dispatcher {
	return &Dispatcher{Registry: reg, Handler: h, counts: make(map[xeno.TypeCode]int)}
}

// LookupTypeDef implements xeno.Dispatcher.
func (d *Dispatcher) LookupTypeDef(code xeno.TypeCode) (*xeno.Schema, error) {
	def, err := d.Registry.Lookup(code)
	if err != nil {
		return nil, err
	}
	return &def.Schema, nil
}

// DecodeArgs implements xeno.Dispatcher.
func (d *Dispatcher) DecodeArgs(s *xeno.Schema, payload []byte) (xeno.Event, error) {
	def, err := d.Registry.Lookup(s.Code)
	if err != nil {
		return nil, err
	}
	return def.Decode(payload)
}

// EncodeArgs implements xeno.Dispatcher.
func (d *Dispatcher) EncodeArgs(ev xeno.Event) ([]byte, error) {
	return Encode(ev)
}

// OnMessage implements xeno.Dispatcher.
func (d *Dispatcher) OnMessage(ev xeno.Event) {
	d.lock.Lock()
	d.counts[ev.TypeCode()]++
	d.lock.Unlock()
	if msg, ok := ev.(fx.Message); ok {
		d.handle(msg)
	}
}

// OnSessionEstablished implements xeno.Dispatcher.
func (d *Dispatcher) OnSessionEstablished() {
	glog.Info("session established")
	d.handle(&Established{})
}

// OnSessionLost implements xeno.Dispatcher.
func (d *Dispatcher) OnSessionLost(reason error) {
	glog.Infof("session lost: %v", reason)
	d.handle(&Lost{Reason: reason})
}

// OnDelivered implements xeno.DeliveryObserver.
func (d *Dispatcher) OnDelivered(id xeno.MessageID) {
	d.handle(&Delivered{ID: id})
}

// OnDeliveryFailed implements xeno.DeliveryObserver.
func (d *Dispatcher) OnDeliveryFailed(id xeno.MessageID, err error) {
	d.handle(&DeliveryFailed{ID: id, Err: err})
}

// Counts returns the number of received events per type name.
func (d *Dispatcher) Counts() map[string]int {
	d.lock.Lock()
	defer d.lock.Unlock()
	out := make(map[string]int, len(d.counts))
	for code, n := range d.counts {
		name := "unknown"
		if def, err := d.Registry.Lookup(code); err == nil {
			name = def.Name
		}
		out[name] += n
	}
	return out
}

func (d *Dispatcher) handle(msg fx.Message) {
	if h := d.Handler; h != nil {
		h.HandleMessage(msg)
	}
}
