package xeno

import (
	"encoding/binary"
	"fmt"
	"time"

	fx "github.com/robotalks/xeno.go/pkg/framework"
)

// MessageID is the unique_id of a frame. Replies carry the id of the
// frame they acknowledge.
type MessageID uint16

// NewMessageID creates a random message id.
func NewMessageID() MessageID {
	return MessageID(uint16(time.Now().UnixNano())).Next()
}

// Next calculates the next id. Zero is never used.
func (id MessageID) Next() MessageID {
	n := uint16(id) + 1
	if n == 0 {
		n = 1
	}
	return MessageID(n)
}

// TypeCode identifies the schema of a frame's payload.
type TypeCode uint16

// Session-reserved type codes. Frames with these codes are handled by the
// session and never reach the Dispatcher.
const (
	TypeReply        TypeCode = 0x0001
	TypeHangup       TypeCode = 0x0002
	TypeSelfDescribe TypeCode = 0x0004
)

// IsSessionType reports whether the code is handled by the session itself.
func (c TypeCode) IsSessionType() bool {
	switch c {
	case TypeReply, TypeHangup, TypeSelfDescribe:
		return true
	}
	return false
}

// ProcState is the processing state of a Message.
type ProcState int

// Message processing states.
const (
	Uninitialized ProcState = iota
	Receiving
	SyncPacket
	AwaitingDecode
	Error
	AwaitingSend
	AwaitingReply
	AwaitingReap
)

var procStateNames = [...]string{
	Uninitialized:  "Uninitialized",
	Receiving:      "Receiving",
	SyncPacket:     "SyncPacket",
	AwaitingDecode: "AwaitingDecode",
	Error:          "Error",
	AwaitingSend:   "AwaitingSend",
	AwaitingReply:  "AwaitingReply",
	AwaitingReap:   "AwaitingReap",
}

// String implements fmt.Stringer.
func (s ProcState) String() string {
	if s >= 0 && int(s) < len(procStateNames) {
		return procStateNames[s]
	}
	return fmt.Sprintf("ProcState(%d)", int(s))
}

// Terminal reports whether inbound decoding of the message is finished.
func (s ProcState) Terminal() bool {
	return s == SyncPacket || s == AwaitingDecode || s == Error
}

type slotKind uint8

const (
	slotHeap slotKind = iota
	slotPooled
)

// slot tags where a Message lives. It is decided when the Message is
// created and never changes.
type slot struct {
	kind  slotKind
	index int
}

// Message is a container for one frame, inbound or outbound.
type Message struct {
	ID         MessageID
	Code       TypeCode
	Payload    []byte
	Checksum   byte
	Length     uint32
	State      ProcState
	DemandsAck bool
	Retries    int
	Event      Event
	Err        error
	// MaxLength rejects longer frames right after the length prefix.
	// Zero means MaxFrameLength. Reset when the message is reclaimed.
	MaxLength uint32

	slot   slot
	live   bool
	header [HeaderLen]byte
	hdrLen int
	wire   []byte
	ack    fx.Schedule
}

// Pooled returns the pool index when the message is a preallocated slot.
func (m *Message) Pooled() (int, bool) {
	return m.slot.index, m.slot.kind == slotPooled
}

// Received returns the number of frame bytes received so far.
func (m *Message) Received() int {
	return m.hdrLen + len(m.Payload)
}

// String implements fmt.Stringer.
func (m *Message) String() string {
	return fmt.Sprintf("msg{id=%d code=%04x len=%d state=%s}", uint16(m.ID), uint16(m.Code), m.Length, m.State)
}

func (m *Message) reset() {
	payload := m.Payload[:0]
	wire := m.wire[:0]
	s := m.slot
	*m = Message{Payload: payload, wire: wire, slot: s}
}

// Feed decodes bytes into the message and returns the number of bytes
// consumed. It is resumable: a partial frame is buffered and the next call
// continues where this one stopped. A call consumes nothing when fewer than
// 4 bytes are available at the start of a frame, or once the message
// reached a terminal state; otherwise it consumes at least one byte.
//
// The first 4 bytes are tested against the sync marker before they are
// read as a header: the marker is numerically a valid header too.
func (m *Message) Feed(buf []byte) int {
	switch m.State {
	case Uninitialized:
		if len(buf) < SyncMarkerLen {
			return 0
		}
		if IsSyncMarker(buf) {
			m.State = SyncPacket
			m.Length = SyncMarkerLen
			m.Checksum = checksumSeed
			return SyncMarkerLen
		}
		m.State = Receiving
		return m.receive(buf)
	case Receiving:
		return m.receive(buf)
	}
	return 0
}

func (m *Message) receive(buf []byte) (consumed int) {
	if m.hdrLen < lengthFieldLen {
		n := copy(m.header[m.hdrLen:lengthFieldLen], buf)
		m.hdrLen += n
		consumed += n
		buf = buf[n:]
		if m.hdrLen < lengthFieldLen {
			return
		}
		m.Length = uint32(m.header[0]) | uint32(m.header[1])<<8 | uint32(m.header[2])<<16
		m.Checksum = m.header[3]
		if m.Length < HeaderLen {
			m.State = Error
			m.Err = &FramingError{Reason: "length shorter than header", Length: m.Length}
			return
		}
		if m.MaxLength > 0 && m.Length > m.MaxLength {
			m.State = Error
			m.Err = &FramingError{Reason: "length exceeds limit", Length: m.Length}
			return
		}
	}
	if m.hdrLen < HeaderLen {
		n := copy(m.header[m.hdrLen:], buf)
		m.hdrLen += n
		consumed += n
		buf = buf[n:]
		if m.hdrLen < HeaderLen {
			return
		}
		m.ID = MessageID(binary.LittleEndian.Uint16(m.header[4:6]))
		m.Code = TypeCode(binary.LittleEndian.Uint16(m.header[6:8]))
		m.Payload = m.Payload[:0]
	}
	if need := int(m.Length) - HeaderLen - len(m.Payload); need > 0 {
		if need > len(buf) {
			need = len(buf)
		}
		m.Payload = append(m.Payload, buf[:need]...)
		consumed += need
	}
	if len(m.Payload) == int(m.Length)-HeaderLen {
		if sum := Checksum(m.ID, m.Code, m.Payload); sum != m.Checksum {
			m.State = Error
			m.Err = &FramingError{Reason: "checksum mismatch", Length: m.Length, Checksum: m.Checksum, Expected: sum}
		} else {
			m.State = AwaitingDecode
		}
	}
	return
}
