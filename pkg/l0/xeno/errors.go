package xeno

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncExhausted indicates the peer never answered the sync markers
	// within the configured ceiling. The session is lost.
	ErrSyncExhausted = errors.New("sync retries exhausted")
	// ErrLinkLost indicates the transport went away underneath the session.
	ErrLinkLost = errors.New("link lost")
	// ErrHungup indicates the session was hung up by either side.
	ErrHungup = errors.New("session hung up")
	// ErrSessionClosed is returned when submitting into a Hungup or
	// Disconnected session.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotFound is returned by Dispatcher.LookupTypeDef for unknown codes.
	ErrNotFound = errors.New("type not found")
	// ErrQueueFull indicates a message queue reached its capacity.
	ErrQueueFull = errors.New("queue full")
	// ErrDoubleReclaim indicates a message was returned to its pool twice.
	ErrDoubleReclaim = errors.New("message reclaimed twice")
	// ErrFrameTooLong indicates a payload can't be expressed in 24-bit length.
	ErrFrameTooLong = errors.New("frame too long")
	// ErrAckMismatch is returned by Submit when demandsAck disagrees with
	// the schema of the type. The receiver replies by its own schema, so
	// the two must agree.
	ErrAckMismatch = errors.New("demandsAck disagrees with schema")
)

// FramingError indicates a frame that can't be trusted: bad length or
// checksum mismatch.
type FramingError struct {
	Reason   string
	Length   uint32
	Checksum byte
	Expected byte
}

// Error implements error.
func (e *FramingError) Error() string {
	if e.Checksum != e.Expected {
		return fmt.Sprintf("framing error: %s (checksum %02x, computed %02x)", e.Reason, e.Checksum, e.Expected)
	}
	return fmt.Sprintf("framing error: %s (length %d)", e.Reason, e.Length)
}

// UnknownTypeError reports a well-formed frame with a type code the
// Dispatcher doesn't know. It never affects sync.
type UnknownTypeError struct {
	Code TypeCode
}

// Error implements error.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type: %04x", uint16(e.Code))
}

// ArgDecodeError reports a well-formed frame whose payload doesn't match
// the schema of its type. It counts as a parse failure.
type ArgDecodeError struct {
	Code TypeCode
	Err  error
}

// Error implements error.
func (e *ArgDecodeError) Error() string {
	return fmt.Sprintf("decode args of %04x: %v", uint16(e.Code), e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ArgDecodeError) Unwrap() error {
	return e.Err
}

// AckTimeoutError reports a message that was never acknowledged.
type AckTimeoutError struct {
	ID      MessageID
	Retries int
}

// Error implements error.
func (e *AckTimeoutError) Error() string {
	return fmt.Sprintf("message %d not acknowledged after %d retries", uint16(e.ID), e.Retries)
}
