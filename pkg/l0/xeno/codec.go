package xeno

import (
	"encoding/binary"
	"fmt"
)

// Frame layout constants.
const (
	// HeaderLen is the length of the frame header: len[3] checksum[1] id[2] type[2].
	HeaderLen = 8
	// MaxFrameLength is the largest length a 24-bit length field can carry.
	MaxFrameLength = 0xffffff

	lengthFieldLen = 4
	checksumSeed   = 0x55
)

// ArgEncoder encodes the arguments of an event into an opaque payload.
type ArgEncoder interface {
	EncodeArgs(Event) ([]byte, error)
}

// Checksum computes the frame checksum over id, type code and payload.
func Checksum(id MessageID, code TypeCode, payload []byte) byte {
	sum := byte(checksumSeed)
	sum += byte(id) + byte(id>>8)
	sum += byte(code) + byte(code>>8)
	for _, b := range payload {
		sum += b
	}
	return sum
}

// EncodeFrame builds the wire bytes of one frame.
func EncodeFrame(id MessageID, code TypeCode, payload []byte) ([]byte, error) {
	return appendFrame(nil, id, code, payload)
}

func appendFrame(dst []byte, id MessageID, code TypeCode, payload []byte) ([]byte, error) {
	total := len(payload) + HeaderLen
	if total > MaxFrameLength {
		return nil, ErrFrameTooLong
	}
	var h [HeaderLen]byte
	h[0], h[1], h[2] = byte(total), byte(total>>8), byte(total>>16)
	h[3] = Checksum(id, code, payload)
	binary.LittleEndian.PutUint16(h[4:6], uint16(id))
	binary.LittleEndian.PutUint16(h[6:8], uint16(code))
	dst = append(dst, h[:]...)
	return append(dst, payload...), nil
}

// Serialize encodes an event with the given id into wire bytes. Nothing is
// produced when argument encoding fails.
func Serialize(enc ArgEncoder, ev Event, id MessageID) ([]byte, error) {
	payload, err := enc.EncodeArgs(ev)
	if err != nil {
		return nil, fmt.Errorf("encode args of %04x: %w", uint16(ev.TypeCode()), err)
	}
	return EncodeFrame(id, ev.TypeCode(), payload)
}

// serializeInto fills an outbound message from an event.
func serializeInto(m *Message, enc ArgEncoder, ev Event) error {
	payload, err := enc.EncodeArgs(ev)
	if err != nil {
		return fmt.Errorf("encode args of %04x: %w", uint16(ev.TypeCode()), err)
	}
	m.Code, m.Event = ev.TypeCode(), ev
	return fillFrame(m, payload)
}

// fillFrame stores the payload and wire bytes of an outbound message whose
// ID and Code are already set.
func fillFrame(m *Message, payload []byte) error {
	wire, err := appendFrame(m.wire[:0], m.ID, m.Code, payload)
	if err != nil {
		return err
	}
	m.wire = wire
	m.Payload = append(m.Payload[:0], payload...)
	m.Length = uint32(len(wire))
	m.Checksum = wire[3]
	return nil
}
