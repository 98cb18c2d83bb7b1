// Package msgs provides the typed events carried in xeno frames and the
// Dispatcher which maps type codes to them.
package msgs

// Event arguments are protobuf encoded. The built-in events use the
// well-known types so both ends only need to agree on the type code.
//
// Type codes below 0x0010 are reserved by the session.
