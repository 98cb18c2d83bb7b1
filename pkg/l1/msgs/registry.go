package msgs

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/xeno.go/pkg/framework"
	"github.com/robotalks/xeno.go/pkg/l0/xeno"
)

// Event is an event which can be carried in a frame.
type Event interface {
	fx.Message
	xeno.Event
	Serializable() proto.Message
}

// TypeDef is a registered event type.
type TypeDef struct {
	xeno.Schema
	Prototype Event
}

var (
	// ErrReservedType indicates a type code reserved by the session.
	ErrReservedType = errors.New("reserved type code")
	// ErrNotEvent indicates a value which is not a registered Event.
	ErrNotEvent = errors.New("not an event")
)

// ErrDuplicateType indicates a type code registered twice.
type ErrDuplicateType struct {
	Code xeno.TypeCode
	Name string
}

// Error implements error.
func (e *ErrDuplicateType) Error() string {
	return fmt.Sprintf("type %04x already registered as %s", uint16(e.Code), e.Name)
}

// Registry maps type codes to event types.
type Registry struct {
	defs map[xeno.TypeCode]*TypeDef
	lock sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[xeno.TypeCode]*TypeDef)}
}

// NewDefaultRegistry creates a Registry with the built-in events.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("ping", (*Ping)(nil), true)
	r.MustRegister("log", (*Log)(nil), false)
	r.MustRegister("echo", (*Echo)(nil), true)
	r.MustRegister("reading", (*Reading)(nil), false)
	r.MustRegister("clock", (*Clock)(nil), false)
	return r
}

// Register adds an event type. The prototype only provides NewMessage and
// TypeCode, so a typed nil pointer is fine.
func (r *Registry) Register(name string, prototype Event, demandsAck bool) error {
	code := prototype.TypeCode()
	if code.IsSessionType() || code < PingType {
		return ErrReservedType
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if def, ok := r.defs[code]; ok {
		return &ErrDuplicateType{Code: code, Name: def.Name}
	}
	r.defs[code] = &TypeDef{
		Schema:    xeno.Schema{Code: code, Name: name, DemandsAck: demandsAck},
		Prototype: prototype,
	}
	return nil
}

// MustRegister is Register which panics on error.
func (r *Registry) MustRegister(name string, prototype Event, demandsAck bool) {
	if err := r.Register(name, prototype, demandsAck); err != nil {
		panic(err)
	}
}

// Lookup finds the TypeDef of a code.
func (r *Registry) Lookup(code xeno.TypeCode) (*TypeDef, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if def, ok := r.defs[code]; ok {
		return def, nil
	}
	return nil, xeno.ErrNotFound
}

// LookupName finds the TypeDef by name.
func (r *Registry) LookupName(name string) (*TypeDef, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, def := range r.defs {
		if def.Name == name {
			return def, nil
		}
	}
	return nil, xeno.ErrNotFound
}

// Defs returns all TypeDefs ordered by code.
func (r *Registry) Defs() []*TypeDef {
	r.lock.RLock()
	defs := make([]*TypeDef, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	r.lock.RUnlock()
	sort.Slice(defs, func(i, j int) bool { return defs[i].Code < defs[j].Code })
	return defs
}

// Encode encodes the arguments of an event.
func Encode(ev xeno.Event) ([]byte, error) {
	e, ok := ev.(Event)
	if !ok {
		return nil, ErrNotEvent
	}
	return proto.Marshal(e.Serializable())
}

// Decode decodes a payload into a new event of the type.
func (d *TypeDef) Decode(payload []byte) (Event, error) {
	ev, ok := d.Prototype.NewMessage().(Event)
	if !ok {
		return nil, ErrNotEvent
	}
	if err := proto.Unmarshal(payload, ev.Serializable()); err != nil {
		return nil, err
	}
	return ev, nil
}
