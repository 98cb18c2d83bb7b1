package xeno

import "io"

// Event is what the Dispatcher exchanges with the session. The session
// only needs its type code; the arguments are opaque to it.
type Event interface {
	TypeCode() TypeCode
}

// Schema describes a type code known to the Dispatcher.
type Schema struct {
	Code TypeCode
	Name string
	// DemandsAck makes the receiving session reply to every frame of
	// this type.
	DemandsAck bool
}

// Dispatcher is the application side of a session: it owns the type
// definitions and argument codecs, and receives decoded events and
// session notifications. All calls come from the session's processing
// context.
type Dispatcher interface {
	// LookupTypeDef returns the schema of a type code, or ErrNotFound.
	LookupTypeDef(TypeCode) (*Schema, error)
	// DecodeArgs decodes a payload. The payload is only valid during the call.
	DecodeArgs(*Schema, []byte) (Event, error)
	// EncodeArgs encodes the arguments of an event.
	EncodeArgs(Event) ([]byte, error)
	// OnMessage receives a decoded inbound event.
	OnMessage(Event)
	// OnSessionEstablished is called once when the dialog is established.
	OnSessionEstablished()
	// OnSessionLost is called once when the session is over.
	OnSessionLost(reason error)
}

// Transport sends bytes to the peer.
type Transport interface {
	Send([]byte) error
}

// TransportFunc is func form of Transport.
type TransportFunc func([]byte) error

// Send implements Transport.
func (f TransportFunc) Send(p []byte) error {
	return f(p)
}

// WriterTransport adapts an io.Writer as Transport.
type WriterTransport struct {
	io.Writer
}

// Send implements Transport.
func (t WriterTransport) Send(p []byte) error {
	_, err := t.Write(p)
	return err
}
