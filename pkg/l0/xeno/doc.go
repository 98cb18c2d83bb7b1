// Package xeno implements the session protocol between a host and a
// peer over an unreliable byte stream (serial line, socket, broker
// topic).
//
// Frames are little-endian:
//
//	len[3] checksum[1] id[2] type[2] payload[len-8]
//
// where len counts the whole frame and checksum is
// (0x55 + id bytes + type bytes + payload bytes) mod 256.
//
// The 4 bytes 04 00 00 55 form the sync marker, a frame with nothing but
// a header prefix. A side which stops trusting frame boundaries (too many
// framing failures or unacknowledged messages) sends markers until the
// peer answers, then both sides resume with the next clean frame.
//
// On top of the framing, a session carries a small dialog: both sides
// describe themselves after the first sync, and either side may hang up.
// Messages of types which demand acknowledgement are replied to with a
// frame of the same id and retried until answered.
//
// Everything in a Session runs in one cooperative context. Link drives a
// Session from a framework.Loop.
package xeno
