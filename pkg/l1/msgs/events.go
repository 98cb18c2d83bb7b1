package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	"github.com/golang/protobuf/ptypes/empty"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/golang/protobuf/ptypes/timestamp"
	"github.com/golang/protobuf/ptypes/wrappers"

	fx "github.com/robotalks/xeno.go/pkg/framework"
	"github.com/robotalks/xeno.go/pkg/l0/xeno"
)

// Type codes of built-in events.
const (
	PingType    xeno.TypeCode = 0x0010
	LogType     xeno.TypeCode = 0x0011
	EchoType    xeno.TypeCode = 0x0012
	ReadingType xeno.TypeCode = 0x0013
	ClockType   xeno.TypeCode = 0x0014

	// CustomTypeBase is the first code for application events.
	CustomTypeBase xeno.TypeCode = 0x0100
)

// Ping checks the peer is alive. It demands acknowledgement.
type Ping struct {
	empty.Empty
}

// NewMessage implements Message.
func (m *Ping) NewMessage() fx.Message { return &Ping{} }

// TypeCode implements Event.
func (m *Ping) TypeCode() xeno.TypeCode { return PingType }

// Serializable implements Event.
func (m *Ping) Serializable() proto.Message { return &m.Empty }

// Log carries a line of text.
type Log struct {
	wrappers.StringValue
}

// NewLog creates a Log.
func NewLog(text string) *Log {
	m := &Log{}
	m.Value = text
	return m
}

// NewMessage implements Message.
func (m *Log) NewMessage() fx.Message { return &Log{} }

// TypeCode implements Event.
func (m *Log) TypeCode() xeno.TypeCode { return LogType }

// Serializable implements Event.
func (m *Log) Serializable() proto.Message { return &m.StringValue }

// Echo carries opaque bytes. Its type demands acknowledgement, so the
// sender learns the bytes arrived; the receiver does not send them back.
type Echo struct {
	wrappers.BytesValue
}

// NewEcho creates an Echo.
func NewEcho(data []byte) *Echo {
	m := &Echo{}
	m.Value = data
	return m
}

// NewMessage implements Message.
func (m *Echo) NewMessage() fx.Message { return &Echo{} }

// TypeCode implements Event.
func (m *Echo) TypeCode() xeno.TypeCode { return EchoType }

// Serializable implements Event.
func (m *Echo) Serializable() proto.Message { return &m.BytesValue }

// Reading is a set of named sensor values.
type Reading struct {
	structpb.Struct
}

// NewReading creates a Reading from numeric values.
func NewReading(values map[string]float64) *Reading {
	m := &Reading{}
	m.Fields = make(map[string]*structpb.Value, len(values))
	for k, v := range values {
		m.Fields[k] = &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
	}
	return m
}

// Numbers returns the numeric fields.
func (m *Reading) Numbers() map[string]float64 {
	out := make(map[string]float64, len(m.Fields))
	for k, v := range m.Fields {
		if n, ok := v.GetKind().(*structpb.Value_NumberValue); ok {
			out[k] = n.NumberValue
		}
	}
	return out
}

// NewMessage implements Message.
func (m *Reading) NewMessage() fx.Message { return &Reading{} }

// TypeCode implements Event.
func (m *Reading) TypeCode() xeno.TypeCode { return ReadingType }

// Serializable implements Event.
func (m *Reading) Serializable() proto.Message { return &m.Struct }

// Clock carries the wall clock of the sender.
type Clock struct {
	timestamp.Timestamp
}

// NewClock creates a Clock.
func NewClock(t time.Time) *Clock {
	m := &Clock{}
	if ts, err := ptypes.TimestampProto(t); err == nil {
		m.Seconds, m.Nanos = ts.Seconds, ts.Nanos
	}
	return m
}

// Time converts the clock to time.Time.
func (m *Clock) Time() (time.Time, error) {
	return ptypes.Timestamp(&m.Timestamp)
}

// NewMessage implements Message.
func (m *Clock) NewMessage() fx.Message { return &Clock{} }

// TypeCode implements Event.
func (m *Clock) TypeCode() xeno.TypeCode { return ClockType }

// Serializable implements Event.
func (m *Clock) Serializable() proto.Message { return &m.Timestamp }
